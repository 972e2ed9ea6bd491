package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge/pkg/jsonfix"
	"github.com/clipforge/clipforge/pkg/textmatch"
)

const (
	collectionsFile = "step5_collections.json"
	// Fewer surviving collections than this triggers the fallbacks.
	minCollections = 3
	minClipsPerCol = 2
)

type clusterItem struct {
	Title   string   `json:"collection_title"`
	Summary string   `json:"collection_summary"`
	Clips   []string `json:"clips"`
}

// keywordThemes is the fallback grouping when the model cannot
// produce enough coherent collections.
var keywordThemes = []struct {
	title    string
	summary  string
	keywords []string
}{
	{"投资理财", "关于投资与理财的讨论", []string{"投资", "理财", "股票", "基金", "赚钱", "财务", "资产"}},
	{"职场成长", "职场经验与个人成长", []string{"职场", "工作", "跳槽", "面试", "老板", "同事", "升职"}},
	{"社会观察", "对社会现象的观察与思考", []string{"社会", "现象", "观察", "人群", "城市", "时代"}},
	{"文化差异", "不同文化之间的碰撞", []string{"文化", "差异", "国外", "西方", "东方", "习惯"}},
	{"直播互动", "与观众的互动片段", []string{"直播", "弹幕", "观众", "互动", "连麦", "粉丝"}},
	{"情感关系", "情感与人际关系话题", []string{"感情", "恋爱", "婚姻", "家庭", "朋友", "关系"}},
	{"健康生活", "健康与生活方式", []string{"健康", "运动", "饮食", "睡眠", "习惯", "生活方式"}},
	{"创作平台", "内容创作与平台生态", []string{"创作", "平台", "视频", "流量", "账号", "内容"}},
}

// runStage5 groups high-score clips into thematic collections. Model
// output references clips by title, so resolution goes through the
// escalating matcher. Too few usable collections falls back first to
// keyword grouping, then to score tiers.
func (p *Pipeline) runStage5(ctx context.Context, id string, meta *ProjectMetadata) error {
	var high []Clip
	if err := p.store.ReadOutput(id, titlesFile, &high); err != nil {
		return fmt.Errorf("read titled clips: %w", err)
	}
	maxClips := p.settings.Get().MaxClipsPerCollection
	if maxClips < minClipsPerCol {
		maxClips = minClipsPerCol
	}

	if len(high) < minClipsPerCol {
		slog.Info("not enough clips for collections", "project", id, "clips", len(high))
		return p.store.WriteOutput(id, collectionsFile, []Collection{})
	}

	collections := p.clusterWithModel(ctx, id, meta, high, maxClips)
	if len(collections) < minCollections {
		// Fallbacks only replace the model output when they do better;
		// a usable model collection is never traded for nothing.
		if kw := keywordCluster(high, maxClips); len(kw) > len(collections) {
			slog.Info("falling back to keyword clustering", "project", id,
				"fromModel", len(collections), "fromKeywords", len(kw))
			collections = kw
		}
	}
	if len(collections) == 0 {
		slog.Info("falling back to score tiers", "project", id)
		collections = scoreTierCluster(high, maxClips)
	}
	for i := range collections {
		collections[i].ID = strconv.Itoa(i + 1)
	}
	if err := p.store.WriteOutput(id, collectionsFile, collections); err != nil {
		return err
	}
	slog.Info("collections built", "project", id, "collections", len(collections))
	return nil
}

// clusterWithModel asks the model for collections and resolves the
// returned titles back to clip ids. Any model failure returns nil so
// the fallbacks take over.
func (p *Pipeline) clusterWithModel(ctx context.Context, id string, meta *ProjectMetadata,
	high []Clip, maxClips int) []Collection {

	prompt, err := p.prompts.Load(meta.FileInfo.Category, roleClustering)
	if err != nil {
		slog.Warn("no clustering prompt", "project", id, "err", err)
		return nil
	}
	provider, err := p.newProv(p.settings.Get())
	if err != nil {
		slog.Warn("no provider for clustering", "project", id, "err", err)
		return nil
	}

	var lines []string
	for _, c := range high {
		summary := c.RecommendReason
		if summary == "" {
			summary = c.Outline
		}
		lines = append(lines, fmt.Sprintf("标题: %s | 摘要: %s | 评分: %.2f", c.Title(), summary, c.FinalScore))
	}
	resp, err := CallWithRetry(ctx, provider, prompt, strings.Join(lines, "\n"), p.settings.Get().MaxRetries)
	if err != nil {
		slog.Warn("clustering call failed", "project", id, "err", err)
		return nil
	}
	var items []clusterItem
	if err := jsonfix.ParseInto(resp, &items); err != nil {
		slog.Warn("clustering response not parseable", "project", id, "err", err)
		return nil
	}

	candidates := make([]textmatch.Candidate, len(high))
	for i, c := range high {
		candidates[i] = textmatch.Candidate{
			ID: c.ID,
			// Generated title first, then the outline, then the raw id
			// for models that answer with ids instead of titles.
			Names: []string{c.Title(), c.Outline, c.ID},
		}
	}

	var out []Collection
	for _, it := range items {
		// An empty summary is tolerated; only a missing title or an
		// empty clip list disqualifies a collection.
		if it.Title == "" || len(it.Clips) == 0 {
			continue
		}
		var ids []string
		seen := map[string]bool{}
		for _, want := range it.Clips {
			cid, ok := textmatch.Match(want, candidates)
			if !ok {
				slog.Debug("collection clip not resolved", "project", id,
					"collection", it.Title, "clip", want)
				continue
			}
			if seen[cid] {
				continue
			}
			seen[cid] = true
			ids = append(ids, cid)
		}
		if len(ids) < minClipsPerCol {
			continue
		}
		if len(ids) > maxClips {
			ids = ids[:maxClips]
		}
		out = append(out, Collection{Title: it.Title, Summary: it.Summary, ClipIDs: ids})
	}
	return out
}

// keywordCluster groups clips by fixed theme keywords.
func keywordCluster(high []Clip, maxClips int) []Collection {
	var out []Collection
	used := map[string]bool{}
	for _, theme := range keywordThemes {
		var ids []string
		for _, c := range high {
			if used[c.ID] {
				continue
			}
			text := c.Title() + c.Outline + c.RecommendReason
			for _, kw := range theme.keywords {
				if strings.Contains(text, kw) {
					ids = append(ids, c.ID)
					break
				}
			}
		}
		if len(ids) < minClipsPerCol {
			continue
		}
		if len(ids) > maxClips {
			ids = ids[:maxClips]
		}
		for _, cid := range ids {
			used[cid] = true
		}
		out = append(out, Collection{Title: theme.title, Summary: theme.summary, ClipIDs: ids})
	}
	return out
}

// scoreTierCluster is the last resort: group by score bands.
func scoreTierCluster(high []Clip, maxClips int) []Collection {
	tiers := []struct {
		title   string
		summary string
		min     float64
		max     float64
	}{
		{"精选推荐", "评分最高的精华片段", 0.8, 1.01},
		{"优质内容", "值得一看的优质片段", 0.6, 0.8},
	}
	var out []Collection
	for _, tier := range tiers {
		var ids []string
		for _, c := range high {
			if c.FinalScore >= tier.min && c.FinalScore < tier.max {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) < minClipsPerCol {
			continue
		}
		if len(ids) > maxClips {
			ids = ids[:maxClips]
		}
		out = append(out, Collection{Title: tier.title, Summary: tier.summary, ClipIDs: ids})
	}
	return out
}
