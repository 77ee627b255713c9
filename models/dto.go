package models

type UploadRequestIn struct {
	FileName  string `json:"file_name" validate:"required"`
	MediaType string `json:"media_type" validate:"required"`
}

type UploadRequestOut struct {
	UploadId  uint   `json:"upload_id"`
	UploadUrl string `json:"upload_url"`
}

type SubjectDetectionOut struct {
	SubjectCount int               `json:"subject_count"`
	Subjects     []DetectedSubject `json:"subjects"`
}

type StyleSessionIn struct {
	UploadId uint    `json:"upload_id" validate:"required"`
	Kind     string  `json:"kind" validate:"required"`
	Occasion *string `json:"occasion"`
	// coordinated sessions: labels of the two chosen subjects.
	// other kinds: optionally one label to focus on in a group photo
	Subjects    []string `json:"subjects"`
	Preferences *string  `json:"preferences"`
}

type StyleSessionOut struct {
	Id                uint                 `json:"id"`
	Kind              string               `json:"kind"`
	Status            string               `json:"status"`
	Occasion          *string              `json:"occasion"`
	Duration          *float64             `json:"duration"`
	GenerationError   *string              `json:"generation_error"`
	Advice            *FashionAdvice       `json:"advice,omitempty"`
	WeeklyPlan        *WeeklyPlan          `json:"weekly_plan,omitempty"`
	OccasionWear      *OccasionWearResults `json:"occasion_wear,omitempty"`
	CoordinatedAdvice *CoordinatedAdvice   `json:"coordinated_advice,omitempty"`
}

type ComboRatingIn struct {
	Occasion string `json:"occasion"`
	Rating   string `json:"rating" validate:"required"`
}

type RegenerateComboIn struct {
	ComboId string `json:"combo_id" validate:"required"`
}

type FavoriteIn struct {
	SuggestionId string `json:"suggestion_id" validate:"required"`
	Style        string `json:"style"`
	Description  string `json:"description"`
}
