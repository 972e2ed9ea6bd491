package app

// Project status values.
const (
	statusCreated    = "created"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

const totalSteps = 6

// stepNames indexed by step number (1-based).
var stepNames = [totalSteps + 1]string{
	"",
	"大纲提取",
	"时间点定位",
	"内容评估",
	"标题生成",
	"主题聚类",
	"视频切割",
}

// FileInfo describes the uploaded source files of a project.
type FileInfo struct {
	VideoPath string `json:"video_path"`
	SrtPath   string `json:"srt_path"`
	VideoSize int64  `json:"video_size"`
	Category  string `json:"category"`
}

// ProjectMetadata is the durable per-project state.
type ProjectMetadata struct {
	ProjectID    string   `json:"project_id"`
	ProjectName  string   `json:"project_name"`
	CreatedAt    string   `json:"created_at"`
	Status       string   `json:"status"`
	CurrentStep  int      `json:"current_step"`
	TotalSteps   int      `json:"total_steps"`
	ErrorMessage string   `json:"error_message,omitempty"`
	FileInfo     FileInfo `json:"file_info"`
}

// OutlineItem is a topic candidate extracted from one transcript chunk.
type OutlineItem struct {
	Title      string   `json:"title"`
	Bullets    []string `json:"bullets,omitempty"`
	ChunkIndex int      `json:"chunk_index"`
}

// Clip is one extractable segment. ID is assigned once when the
// timeline is anchored and never changes afterwards.
type Clip struct {
	ID              string  `json:"id"`
	Outline         string  `json:"outline"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	ChunkIndex      int     `json:"chunk_index"`
	FinalScore      float64 `json:"final_score"`
	RecommendReason string  `json:"recommend_reason,omitempty"`
	GeneratedTitle  string  `json:"generated_title,omitempty"`
	Content         string  `json:"content,omitempty"`
}

// Title returns the presentation title, falling back to the outline.
func (c Clip) Title() string {
	if c.GeneratedTitle != "" {
		return c.GeneratedTitle
	}
	return c.Outline
}

// Collection groups related high-score clips.
type Collection struct {
	ID      string   `json:"id"`
	Title   string   `json:"collection_title"`
	Summary string   `json:"collection_summary"`
	ClipIDs []string `json:"clip_ids"`
}

// ClipMetadata describes a generated clip file.
type ClipMetadata struct {
	Clip
	FilePath  string  `json:"file_path"`
	SrtPath   string  `json:"srt_path,omitempty"`
	DurationS float64 `json:"duration_seconds"`
}

// CollectionMetadata describes a generated collection video.
type CollectionMetadata struct {
	Collection
	FilePath string `json:"file_path"`
}

// StepResult is the durable completion marker of one pipeline stage.
type StepResult struct {
	Step       int    `json:"step"`
	Status     string `json:"status"`
	FinishedAt string `json:"finished_at"`
	Message    string `json:"message,omitempty"`
}

// FinalResults summarizes a completed run.
type FinalResults struct {
	ProjectID       string               `json:"project_id"`
	Clips           []ClipMetadata       `json:"clips"`
	Collections     []CollectionMetadata `json:"collections"`
	ClipCount       int                  `json:"clip_count"`
	CollectionCount int                  `json:"collection_count"`
	FinishedAt      string               `json:"finished_at"`
}
