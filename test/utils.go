package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"stylistapi/models"
	"stylistapi/services"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func NewRefString(data string) *string {
	return &data
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:                 "OurName",
		Email:                "email@example.com",
		GoogleID:             "12232",
		Platform:             models.PlatformIOS,
		LastIp:               "123.122.122.122",
		Status:               "FINISHED_AUTH",
		ReceiveNotifications: true,
	}
	db.Create(&user)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU-rqG1sxS8_WCF5cGZchf",
		Active:        true,
	}
	db.Save(&tokenDb)
	return user
}

func FakeUserV2(db *gorm.DB, userName string, email string, subscription *string) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	user := &models.UserAccount{
		Name:                 userName,
		Email:                email,
		Platform:             models.PlatformIOS,
		LastIp:               "123.122.122.122",
		Status:               "FINISHED_AUTH",
		Subscription:         subscription,
		ReceiveNotifications: true,
	}
	db.Create(&user)
	return user
}

// FakeUpload seeds a photo upload that already went through subject detection.
func FakeUpload(db *gorm.DB, user *models.UserAccount, subjects []models.DetectedSubject) *models.PhotoUpload {
	count := len(subjects)
	subjectsJSON := JsonString(subjects)
	upload := &models.PhotoUpload{
		OwnerID:      user.ID,
		StorageKey:   fmt.Sprintf("uploads/%d/1/photo.jpg", user.ID),
		MediaType:    "image/jpeg",
		Status:       models.UploadStatusUploaded,
		SubjectsJSON: &subjectsJSON,
		SubjectCount: &count,
	}
	db.Create(upload)
	return upload
}

func Contains(items []string, lookFor string) bool {

	for i := 0; i < len(items); i++ {

		if items[i] == lookFor {
			return true
		}
	}
	return false
}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	return url, 204, nil
}

type URLCacheMock struct {
	MockUrl string
}

func (c URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return c.MockUrl, nil
}

// EnqueuerMock records enqueued tasks instead of talking to redis.
type EnqueuerMock struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
}

func (e *EnqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Tasks = append(e.Tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("fake-task-%d", len(e.Tasks))}, nil
}

// StylistModelMock replays canned structured responses in order and records
// everything it was asked, so tests can assert on prompts.
type StylistModelMock struct {
	mu sync.Mutex

	// popped front to back, one per GenerateStructured call
	StructuredQueue []string
	StructuredErr   error

	// non-nil return fails that single image generation
	ImageErr func(prompt string) error

	Requests     []services.StructuredRequest
	ImagePrompts []string
}

func (m *StylistModelMock) GenerateStructured(ctx context.Context, req services.StructuredRequest, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.StructuredErr != nil {
		return nil, m.StructuredErr
	}
	if len(m.StructuredQueue) == 0 {
		return nil, fmt.Errorf("mock: no structured response scripted for call %d", len(m.Requests))
	}
	response := m.StructuredQueue[0]
	m.StructuredQueue = m.StructuredQueue[1:]
	return &services.LLMResponse{
		Response:         response,
		InputTokenCount:  10,
		OutputTokenCount: 13,
		TotalTokenCount:  23,
	}, nil
}

func (m *StylistModelMock) GenerateImage(ctx context.Context, prompt string, refs []services.ImageInput, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.mu.Lock()
	m.ImagePrompts = append(m.ImagePrompts, prompt)
	failer := m.ImageErr
	m.mu.Unlock()
	if failer != nil {
		if err := failer(prompt); err != nil {
			return nil, err
		}
	}
	return &services.LLMResponse{
		Images:           [][]byte{{0x89, 0x50, 0x4E, 0x47}},
		InputTokenCount:  5,
		OutputTokenCount: 7,
		TotalTokenCount:  12,
	}, nil
}
