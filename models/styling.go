package models

// SessionKind selects which styling flow a session runs.
const (
	SessionKindAdvice      = "advice"
	SessionKindWeekly      = "weekly_plan"
	SessionKindOccasion    = "occasion_wear"
	SessionKindCoordinated = "coordinated"
)

func ValidSessionKind(kind string) bool {
	switch kind {
	case SessionKindAdvice, SessionKindWeekly, SessionKindOccasion, SessionKindCoordinated:
		return true
	}
	return false
}

// PhotoUpload tracks a source photo the user put in object storage through a
// presigned URL. Subject detection runs against it before any session starts.
type PhotoUpload struct {
	JsonModel
	Owner        UserAccount `json:"-"`
	OwnerID      uint        `json:"-"`
	StorageKey   string      `json:"-"`
	MediaType    string      `json:"media_type"`
	Status       string      `json:"status"` // draft, uploaded, rejected
	SubjectsJSON *string     `gorm:"type:text" json:"-"`
	SubjectCount *int        `json:"subject_count"`
}

const (
	UploadStatusDraft    = "draft"
	UploadStatusUploaded = "uploaded"
	UploadStatusRejected = "rejected"
)

// StyleSession is one asynchronous styling run over an uploaded photo.
type StyleSession struct {
	JsonModel
	Owner   UserAccount `json:"-"`
	OwnerID uint        `json:"-"`

	UploadID uint        `json:"upload_id"`
	Upload   PhotoUpload `json:"-"`

	Kind     string  `json:"kind"`
	Occasion *string `json:"occasion"` // occasion_wear sessions only
	// coordinated sessions carry the two chosen subject labels pipe separated,
	// single-person sessions may carry one label as a focus hint
	Subject     *string `json:"subject"`
	Preferences *string `json:"preferences"`

	Status               string   `json:"status"` // pending, processing, completed, failed
	ResultJSON           *string  `gorm:"type:text" json:"-"`
	Duration             *float64 `json:"duration"` // in seconds
	LLMModel             *string  `json:"llm_model"`
	LLMInputTokenCount   *int32   `json:"llm_input_token_count"`
	LLMOutputTokenCount  *int32   `json:"llm_output_token_count"`
	LLMTotalTokenCount   *int32   `json:"llm_total_token_count"`
	GenerationRetryTimes int      `json:"generation_retry_times"`
	GenerationError      *string  `json:"generation_error"`
}

const (
	SessionStatusPending    = "pending"
	SessionStatusProcessing = "processing"
	SessionStatusCompleted  = "completed"
	SessionStatusFailed     = "failed"
)

// ComboRating stores the user's latest verdict on a combo. One row per
// (user, combo), later ratings overwrite earlier ones.
type ComboRating struct {
	JsonModel
	Owner    UserAccount `json:"-"`
	OwnerID  uint        `gorm:"index:idx_rating_owner_combo,unique" json:"-"`
	ComboID  string      `gorm:"index:idx_rating_owner_combo,unique" json:"combo_id"`
	Occasion string      `json:"occasion"`
	Rating   string      `json:"rating"` // like, dislike
}

// FavoriteSuggestion is a style suggestion the user pinned for later.
type FavoriteSuggestion struct {
	JsonModel
	Owner        UserAccount `json:"-"`
	OwnerID      uint        `gorm:"index:idx_fav_owner_suggestion,unique" json:"-"`
	SuggestionID string      `gorm:"index:idx_fav_owner_suggestion,unique" json:"suggestion_id"`
	Style        string      `json:"style"`
	Description  string      `json:"description"`
}
