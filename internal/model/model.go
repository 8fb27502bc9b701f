// Package model defines the persistent entities shared by the job store and
// the pipelines that ride on it. Types are semantic; all timestamps are Unix
// seconds.
package model

// DocumentStatus is the lifecycle state of a Document.
type DocumentStatus int

const (
	DocumentUploaded   DocumentStatus = 10
	DocumentProcessing DocumentStatus = 20
	DocumentIndexed    DocumentStatus = 30
	DocumentFailed     DocumentStatus = 40
	DocumentDeleted    DocumentStatus = 90
)

func (s DocumentStatus) String() string {
	switch s {
	case DocumentUploaded:
		return "UPLOADED"
	case DocumentProcessing:
		return "PROCESSING"
	case DocumentIndexed:
		return "INDEXED"
	case DocumentFailed:
		return "FAILED"
	case DocumentDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// IngestJobStatus is the lifecycle state of an IngestJob.
type IngestJobStatus int

const (
	IngestPending   IngestJobStatus = 10
	IngestRunning   IngestJobStatus = 20
	IngestSucceeded IngestJobStatus = 30
	IngestFailed    IngestJobStatus = 40
	IngestCancelled IngestJobStatus = 50
)

func (s IngestJobStatus) String() string {
	switch s {
	case IngestPending:
		return "PENDING"
	case IngestRunning:
		return "RUNNING"
	case IngestSucceeded:
		return "SUCCEEDED"
	case IngestFailed:
		return "FAILED"
	case IngestCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s IngestJobStatus) Terminal() bool {
	return s == IngestSucceeded || s == IngestCancelled
}

// VocJobStatus is the lifecycle state of a VocJob.
type VocJobStatus int

const (
	VocPending    VocJobStatus = 10
	VocCrawling   VocJobStatus = 20
	VocExtracting VocJobStatus = 30
	VocAnalyzing  VocJobStatus = 40
	VocPersisting VocJobStatus = 50
	VocDone       VocJobStatus = 60
	VocFailed     VocJobStatus = 90
)

func (s VocJobStatus) String() string {
	switch s {
	case VocPending:
		return "PENDING"
	case VocCrawling:
		return "CRAWLING"
	case VocExtracting:
		return "EXTRACTING"
	case VocAnalyzing:
		return "ANALYZING"
	case VocPersisting:
		return "PERSISTING"
	case VocDone:
		return "DONE"
	case VocFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s VocJobStatus) Terminal() bool {
	return s == VocDone || s == VocFailed
}

// SpiderTaskStatus is the lifecycle state of a SpiderTask.
type SpiderTaskStatus int

const (
	SpiderPending SpiderTaskStatus = 10
	SpiderRunning SpiderTaskStatus = 20
	SpiderReady   SpiderTaskStatus = 30
	SpiderFailed  SpiderTaskStatus = 40
)

func (s SpiderTaskStatus) String() string {
	switch s {
	case SpiderPending:
		return "PENDING"
	case SpiderRunning:
		return "RUNNING"
	case SpiderReady:
		return "READY"
	case SpiderFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Modality names the kind of content a Chunk holds.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// TriggerMode controls whether VocPipeline enqueues crawl units.
type TriggerMode string

const (
	TriggerAuto  TriggerMode = "AUTO"
	TriggerForce TriggerMode = "FORCE"
	TriggerOff   TriggerMode = "OFF"
)

// RunType names the kind of crawl unit dispatched to the spider.
type RunType string

const (
	RunTypeListing RunType = "amazon_listing"
	RunTypeReview  RunType = "amazon_review"
	RunTypeKeyword RunType = "amazon_keyword_search"
)

// KbSpace is a namespace for a knowledge base.
type KbSpace struct {
	SpaceCode   string
	DisplayName string
	Description string
	Enabled     bool
	Status      string
}

// Document is an uploaded file tracked through the ingest lifecycle.
type Document struct {
	DocumentID       int64
	SpaceCode        string
	Filename         string
	ContentType      string
	Size             int64
	StorageURI       string
	SHA256           string
	Status           DocumentStatus
	ActiveIndexVersion int64 // 0 means none promoted yet
	UploaderID       int64
	LastError        string
	DeletedAt        *int64
}

// IngestJob is a unit of asynchronous ingest work.
type IngestJob struct {
	JobID          int64
	DocumentID     int64
	SpaceCode      string
	PipelineVersion string
	IndexVersion   int64
	IdempotencyKey string
	Status         IngestJobStatus
	TryCount       int
	MaxRetries     int
	LockedBy       string
	LockedUntil    *int64
	LastError      string
}

// ChunkLocator describes where a chunk's content came from in the source
// document: a union of pages, a min/max time range, and a bounded list of
// bounding boxes, plus the always-present character span.
type ChunkLocator struct {
	Pages     []int         `json:"pages,omitempty"`
	TimeRange *TimeRange    `json:"time_range,omitempty"`
	BBoxes    []interface{} `json:"bboxes,omitempty"`
	CharStart int           `json:"char_start"`
	CharEnd   int           `json:"char_end"`
}

type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Chunk is a contiguous piece of a document's content at a given index
// version, with a stable id derived from (document_id, index_version,
// chunk_index).
type Chunk struct {
	ChunkID      string
	DocumentID   int64
	SpaceCode    string
	IndexVersion int64
	ChunkIndex   int
	Modality     Modality
	Locator      ChunkLocator
	Content      string
	ContentHash  string
	TokenCount   int
}

// VocJob is a unit of asynchronous VOC analysis work.
type VocJob struct {
	JobID            int64
	InputHash        string
	SiteCode         string
	ScopeType        string
	ScopeValue       string
	Params           map[string]interface{}
	Status           VocJobStatus
	Stage            string
	PreferredTaskID  *int64
	PreferredRunID   *int64
	ErrorCode        string
	ErrorMessage     string
	FailedStage      string
}

// SpiderTask tracks one crawl unit dispatched through the Redis queue.
type SpiderTask struct {
	TaskRowID            int64
	JobID                int64
	TaskID               string
	RunType              RunType
	ScopeType            string
	ScopeValue           string
	Status               SpiderTaskStatus
	RunID                *int64
	CallbackTokenHash    string
	CallbackTokenCreated int64
	LastError            string
}

// VocOutput is the upsert-semantics per-module analysis result.
type VocOutput struct {
	JobID         int64
	ModuleCode    string
	SchemaVersion int
	Payload       map[string]interface{}
	UpdatedAt     int64
}

// VocEvidence is an append-only, per-run auditable snippet supporting a
// module's output.
type VocEvidence struct {
	EvidenceID int64
	JobID      int64
	ModuleCode string
	SourceType string
	SourceID   int64
	Kind       string
	Snippet    string
	Meta       map[string]interface{}
}

// VocReport is the at-most-one-per-job aggregated report.
type VocReport struct {
	JobID   int64
	Type    string
	Payload map[string]interface{}
	Meta    map[string]interface{}
}
