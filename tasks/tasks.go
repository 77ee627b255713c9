package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"stylistapi/models"
	"stylistapi/services"
)

const TypeStyleSession = "generate:styling"

type StyleSessionPayload struct {
	SessionID uint `json:"session_id"`
}

// Enqueuer is the subset of asynq.Client the controllers need, kept as an
// interface so tests can enqueue without redis.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewClient initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}), nil
}

func NewStyleSessionTask(sessionID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(StyleSessionPayload{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStyleSession, payload), nil
}

func getSourcePhoto(awsService services.AWSServiceProvider, upload models.PhotoUpload) (services.ImageInput, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	fmt.Printf("[Upload: %v] Bucket name: %s\n", upload.ID, bucketName)
	fmt.Printf("[Upload: %v] Request presigned download url.. ", upload.ID)
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, upload.StorageKey)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Upload: %v] Error on getting presigned URL for %s", upload.ID, upload.StorageKey))
		return services.ImageInput{}, err
	}
	fmt.Printf("Downloading... %s\n", fileUrl)
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Upload: %v] Error on downloading %s: %v", upload.ID, upload.StorageKey, err))
		return services.ImageInput{}, err
	}
	mediaType := upload.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return services.ImageInput{Data: fileBytes, MIMEType: mediaType}, nil
}

// archiveSessionLooks stores every generated look image in the bucket. This
// is best effort, the data URIs in the result stay authoritative.
func archiveSessionLooks(awsService services.AWSServiceProvider, session models.StyleSession, combos []*models.OutfitCombo) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	for _, combo := range combos {
		if combo.ImageURL == nil {
			continue
		}
		imageBytes, _, err := services.DataURIBytes(*combo.ImageURL)
		if err != nil {
			fmt.Printf("[Session: %v] Skipping archive of combo %s: %v\n", session.ID, combo.ID, err)
			continue
		}
		cleaned, err := services.NeutralizeLookBackdrop(imageBytes)
		if err != nil {
			fmt.Printf("[Session: %v] Backdrop cleanup failed for combo %s: %v\n", session.ID, combo.ID, err)
			cleaned = imageBytes
		}
		key, err := services.ArchiveGeneratedLook(context.Background(), awsService, bucketName, session.ID, combo.ID, cleaned)
		if err != nil {
			fmt.Printf("[Session: %v] Error archiving look %s: %v\n", session.ID, combo.ID, err)
			sentry.CaptureException(fmt.Errorf("[Session: %v] Error archiving look %s: %v", session.ID, combo.ID, err))
			continue
		}
		fmt.Printf("[Session: %v] Archived look %s as %s\n", session.ID, combo.ID, key)
	}
}

func resultCombos(kind string, advice *models.FashionAdvice, plan models.WeeklyPlan, wear models.OccasionWearResults) []*models.OutfitCombo {
	var combos []*models.OutfitCombo
	switch kind {
	case models.SessionKindAdvice:
		for i := range advice.OutfitCombos {
			combos = append(combos, &advice.OutfitCombos[i])
		}
	case models.SessionKindWeekly:
		for i := range plan {
			combos = append(combos, &plan[i].Outfit)
		}
	case models.SessionKindOccasion:
		for i := range wear {
			combos = append(combos, &wear[i])
		}
	}
	return combos
}

// HandleStyleSessionTask runs one queued styling session end to end: fetch
// the source photo, run the flow for the session kind, persist the result.
func HandleStyleSessionTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, model services.StylistModel,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	google_key := os.Getenv("GOOGLE_API_KEY")
	if google_key == "" {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload()))
	}
	var payload StyleSessionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Session: %v] Start Processing\n", payload.SessionID)
	var session models.StyleSession
	res := db.Joins("Upload").Joins("Owner").First(&session, payload.SessionID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving session for processing %v", payload.SessionID))
		return res.Error
	}
	if session.Status == models.SessionStatusCompleted {
		fmt.Printf("[Session: %v] Already completed\n", payload.SessionID)
		return nil
	}

	session.Status = models.SessionStatusProcessing
	if err := db.Save(&session).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Session: %v] Error on saving processing status %v", payload.SessionID, err))
		return err
	}

	photo, err := getSourcePhoto(awsService, session.Upload)
	if err != nil {
		saveSessionFail(db, &session, "Failed to read your photo, please try uploading it again", true)
		return err
	}
	fmt.Printf("[Session: %v] Downloaded photo size: %d bytes\n", payload.SessionID, len(photo.Data))

	stylist := services.NewStylist(model)
	if session.Preferences != nil {
		stylist.Preferences = *session.Preferences
	}
	if session.Kind != models.SessionKindCoordinated && session.Subject != nil {
		stylist.SubjectHint = *session.Subject
	}
	if session.Owner.EnforcedLLMModel != nil {
		stylist.TextModel = services.LLMModelName(*session.Owner.EnforcedLLMModel)
		fmt.Printf("[Session: %v] [ENFORCE MODEL] Using enforced model: %s\n", payload.SessionID, stylist.TextModel.String())
	}
	modelString := stylist.TextModel.String()
	fmt.Printf("[Session: %v] Kind: %s Model: %s\n", payload.SessionID, session.Kind, modelString)

	start := time.Now()
	var usage *services.GenerationUsage
	var result any
	var combos []*models.OutfitCombo

	switch session.Kind {
	case models.SessionKindAdvice:
		var advice *models.FashionAdvice
		advice, usage, err = stylist.GetFashionAdvice(ctx, photo)
		if err == nil {
			result = advice
			combos = resultCombos(session.Kind, advice, nil, nil)
		}
	case models.SessionKindWeekly:
		var plan models.WeeklyPlan
		plan, usage, err = stylist.GetWeeklyPlan(ctx, photo)
		if err == nil {
			result = plan
			combos = resultCombos(session.Kind, nil, plan, nil)
		}
	case models.SessionKindOccasion:
		if session.Occasion == nil {
			saveSessionFail(db, &session, "This session is missing an occasion, please create a new one", false)
			return fmt.Errorf("[Session: %v] Occasion is nil for occasion_wear session", payload.SessionID)
		}
		var wear models.OccasionWearResults
		wear, usage, err = stylist.GetOccasionWear(ctx, photo, *session.Occasion)
		if err == nil {
			result = wear
			combos = resultCombos(session.Kind, nil, nil, wear)
		}
	case models.SessionKindCoordinated:
		if session.Subject == nil {
			saveSessionFail(db, &session, "This session is missing the selected people, please create a new one", false)
			return fmt.Errorf("[Session: %v] Subjects are nil for coordinated session", payload.SessionID)
		}
		subjects := strings.SplitN(*session.Subject, "|", 2)
		if len(subjects) != 2 {
			saveSessionFail(db, &session, "Coordinated styling needs exactly two selected people", false)
			return fmt.Errorf("[Session: %v] Expected two subjects, got %q", payload.SessionID, *session.Subject)
		}
		var coordinated *models.CoordinatedAdvice
		coordinated, usage, err = stylist.GetCoordinatedAdvice(ctx, photo, subjects[0], subjects[1])
		if err == nil {
			result = coordinated
		}
	default:
		saveSessionFail(db, &session, "Unknown styling request, please create a new one", false)
		return fmt.Errorf("[Session: %v] Unknown session kind %q", payload.SessionID, session.Kind)
	}

	if err != nil {
		if strings.Contains(err.Error(), "content violation") {
			saveSessionFail(db, &session, "Sorry, it seems that this photo contains content that we cannot process.", false)
			sentry.CaptureException(fmt.Errorf("[Session: %v] Content violation: %v", payload.SessionID, err))
			return nil
		}
		fmt.Printf("[Session: %v] Error on generating styling: %v\n", payload.SessionID, err)
		saveSessionFail(db, &session, "Sorry, we failed to style this photo, please try again or contact support", true)
		sentry.CaptureException(fmt.Errorf("[Session: %v] Error on generating styling: %v", payload.SessionID, err))
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		saveSessionFail(db, &session, "Could not save your styling results, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Session: %v] Error on dumping result json: %v", payload.SessionID, err))
		return err
	}
	resultString := string(resultBytes)

	archiveSessionLooks(awsService, session, combos)

	duration := time.Since(start).Seconds()
	session.ResultJSON = &resultString
	session.Status = models.SessionStatusCompleted
	session.Duration = &duration
	session.LLMModel = &modelString
	session.LLMInputTokenCount = &usage.InputTokenCount
	session.LLMOutputTokenCount = &usage.OutputTokenCount
	session.LLMTotalTokenCount = &usage.TotalTokenCount
	session.GenerationError = nil
	fmt.Printf("[Session: %v] LLM Processed in %.2fs, IT: %d, OT: %d, TOT: %d\n", payload.SessionID, duration, usage.InputTokenCount, usage.OutputTokenCount, usage.TotalTokenCount)
	tx := db.Save(&session)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving session %v", payload.SessionID))
		return tx.Error
	}
	fmt.Printf("[Session: %v] Styling finished succesfully..", payload.SessionID)
	if session.Owner.ReceiveNotifications {
		fmt.Printf("[Session: %v] Sending notification to user %v\n", payload.SessionID, session.OwnerID)
		services.SendNotification(fbApp, db, session.OwnerID, "Your Styling Is Ready", "Your personalized outfit recommendations are ready to view", map[string]string{"session_id": fmt.Sprintf("%d", session.ID), "type": "session_completed"})
	} else {
		fmt.Printf("[Session: %v] ReceiveNotifications is false, not sending notification to user %v\n", payload.SessionID, session.OwnerID)
	}
	return nil
}

func saveSessionFail(db *gorm.DB, session *models.StyleSession, msg string, shouldRetry bool) error {
	session.GenerationRetryTimes = session.GenerationRetryTimes + 1
	session.GenerationError = &msg
	if !shouldRetry || session.GenerationRetryTimes >= 3 {

		session.Status = models.SessionStatusFailed
	}
	tx := db.Save(session)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Session %v] Error on saving session for failed status", session.ID))
		return tx.Error
	}
	return nil
}

// ScheduledStylingReminderTask nudges users who have not started a session in
// a while to refresh their weekly plan.
func ScheduledStylingReminderTask(ctx context.Context, t *asynq.Task, db *gorm.DB, fbApp *firebase.App) error {

	fmt.Printf("[Styling Reminder] Processing for all users\n")

	var users []models.UserAccount
	result := db.Where("banned = ? AND receive_notifications = ?", false, true).Find(&users)
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Styling Reminder] Error fetching users: %v", result.Error))
		return result.Error
	}

	fmt.Printf("[Styling Reminder] Found %d users to check\n", len(users))

	cutoff := time.Now().AddDate(0, 0, -7)
	for _, user := range users {
		var recentCount int64
		if err := db.Model(&models.StyleSession{}).Where(
			"owner_id = ? AND created_at > ?", user.ID, cutoff,
		).Count(&recentCount).Error; err != nil {
			sentry.CaptureException(fmt.Errorf("[Styling Reminder] Error counting sessions for user %d: %v", user.ID, err))
			continue
		}
		if recentCount > 0 {
			continue
		}
		fmt.Printf("[Styling Reminder] Sending reminder to user %d\n", user.ID)
		services.SendNotification(fbApp, db, user.ID, "New Week, New Looks", "It's been a while, upload a photo and get a fresh weekly outfit plan", map[string]string{"type": "styling_reminder"})
		time.Sleep(1 * time.Second) // To avoid hitting rate limits
	}

	return nil
}
