package app

import (
	"fmt"
	"os"
	"sync"
)

// Settings are the runtime-mutable knobs. They live in settings.json
// under the data dir and can be changed over the API without a restart.
type Settings struct {
	APIProvider           string  `json:"api_provider"`
	DashScopeAPIKey       string  `json:"dashscope_api_key"`
	SiliconFlowAPIKey     string  `json:"siliconflow_api_key"`
	ModelName             string  `json:"model_name"`
	SiliconFlowModel      string  `json:"siliconflow_model"`
	ChunkSize             int     `json:"chunk_size"`
	MinScoreThreshold     float64 `json:"min_score_threshold"`
	MaxClipsPerCollection int     `json:"max_clips_per_collection"`
	MaxRetries            int     `json:"max_retries"`
	TimeoutSeconds        int     `json:"timeout_seconds"`
	MinTopicDurationMin   int     `json:"min_topic_duration_minutes"`
	MaxTopicDurationMin   int     `json:"max_topic_duration_minutes"`
	DefaultTopicDuration  int     `json:"default_topic_duration_minutes"`
	MinTopicsPerChunk     int     `json:"min_topics_per_chunk"`
	MaxTopicsPerChunk     int     `json:"max_topics_per_chunk"`
}

const (
	providerDashScope   = "dashscope"
	providerSiliconFlow = "siliconflow"
)

func defaultSettings() Settings {
	return Settings{
		APIProvider:           providerDashScope,
		ModelName:             "qwen-plus",
		SiliconFlowModel:      "Qwen/Qwen2.5-72B-Instruct",
		ChunkSize:             5000,
		MinScoreThreshold:     0.7,
		MaxClipsPerCollection: 5,
		MaxRetries:            3,
		TimeoutSeconds:        30,
		MinTopicDurationMin:   2,
		MaxTopicDurationMin:   12,
		DefaultTopicDuration:  5,
		MinTopicsPerChunk:     3,
		MaxTopicsPerChunk:     8,
	}
}

// SettingsMgr serializes access to the settings file.
type SettingsMgr struct {
	mu   sync.Mutex
	path string
	cur  Settings
}

// NewSettingsMgr loads settings.json or starts from defaults when the
// file does not exist yet. API keys fall back to environment variables.
func NewSettingsMgr(path string) (*SettingsMgr, error) {
	m := &SettingsMgr{path: path, cur: defaultSettings()}
	err := readJSONFile(path, &m.cur)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if m.cur.DashScopeAPIKey == "" {
		m.cur.DashScopeAPIKey = os.Getenv("DASHSCOPE_API_KEY")
	}
	if m.cur.SiliconFlowAPIKey == "" {
		m.cur.SiliconFlowAPIKey = os.Getenv("SILICONFLOW_API_KEY")
	}
	return m, nil
}

// Get returns a copy of the current settings.
func (m *SettingsMgr) Get() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Update validates, persists, and applies new settings.
func (m *SettingsMgr) Update(s Settings) error {
	if s.APIProvider != providerDashScope && s.APIProvider != providerSiliconFlow {
		return fmt.Errorf("unknown api provider %q", s.APIProvider)
	}
	if s.MinScoreThreshold < 0 || s.MinScoreThreshold > 1 {
		return fmt.Errorf("min_score_threshold %g outside [0, 1]", s.MinScoreThreshold)
	}
	if s.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := writeJSONFile(m.path, &s); err != nil {
		return err
	}
	m.cur = s
	return nil
}
