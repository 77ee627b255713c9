package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"stylistapi/dbhelper"
	"stylistapi/models"
	"stylistapi/tasks"
	"stylistapi/test"
)

func onePerson() []models.DetectedSubject {
	return []models.DetectedSubject{{Label: "person in the center", Description: "wearing a gray hoodie"}}
}

func twoPeople() []models.DetectedSubject {
	return []models.DetectedSubject{
		{Label: "person on the left", Description: "wearing a red jacket"},
		{Label: "person on the right", Description: "wearing a striped shirt"},
	}
}

func TestCreateSessionEnqueues(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	enqueuer := &test.EnqueuerMock{}
	e := SetupServer(db, &test.StylistModelMock{}, &test.AWSProviderMock{}, nil, enqueuer, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	upload := test.FakeUpload(db, user, onePerson())

	param := models.StyleSessionIn{UploadId: upload.ID, Kind: models.SessionKindAdvice}
	req := test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp models.StyleSessionOut
	json.Unmarshal(rec.Body.Bytes(), &resp)
	assert.Equal(t, models.SessionStatusPending, resp.Status)

	var session models.StyleSession
	db.First(&session, resp.Id)
	assert.Equal(t, models.SessionKindAdvice, session.Kind)
	assert.Equal(t, user.ID, session.OwnerID)

	assert.Len(t, enqueuer.Tasks, 1)
	assert.Equal(t, tasks.TypeStyleSession, enqueuer.Tasks[0].Type())
}

func TestCreateSessionOccasionRequired(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	enqueuer := &test.EnqueuerMock{}
	e := SetupServer(db, &test.StylistModelMock{}, &test.AWSProviderMock{}, nil, enqueuer, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	upload := test.FakeUpload(db, user, onePerson())

	param := models.StyleSessionIn{UploadId: upload.ID, Kind: models.SessionKindOccasion}
	req := test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Empty(t, enqueuer.Tasks)

	param.Occasion = test.NewRefString("Beach Wedding")
	req_2 := test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec_2 := httptest.NewRecorder()

	e.ServeHTTP(rec_2, req_2)

	assert.Equal(t, http.StatusCreated, rec_2.Code, rec_2.Body.String())
	var session models.StyleSession
	db.Last(&session)
	assert.Equal(t, "Beach Wedding", *session.Occasion)
}

func TestCreateCoordinatedSessionValidation(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	enqueuer := &test.EnqueuerMock{}
	e := SetupServer(db, &test.StylistModelMock{}, &test.AWSProviderMock{}, nil, enqueuer, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	soloUpload := test.FakeUpload(db, user, onePerson())
	pairUpload := test.FakeUpload(db, user, twoPeople())

	// solo photo cannot run a coordinated session
	param := models.StyleSessionIn{UploadId: soloUpload.ID, Kind: models.SessionKindCoordinated, Subjects: []string{"a", "b"}}
	req := test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// exactly two subjects must be chosen
	param = models.StyleSessionIn{UploadId: pairUpload.ID, Kind: models.SessionKindCoordinated, Subjects: []string{"person on the left"}}
	req = test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// subjects must match detection results
	param.Subjects = []string{"person on the left", "someone else entirely"}
	req = test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	param.Subjects = []string{"person on the left", "person on the right"}
	req = test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var session models.StyleSession
	db.Last(&session)
	assert.Equal(t, "person on the left|person on the right", *session.Subject)
	assert.Len(t, enqueuer.Tasks, 1)
}

func TestCreateSessionStoresStyleContext(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	enqueuer := &test.EnqueuerMock{}
	e := SetupServer(db, &test.StylistModelMock{}, &test.AWSProviderMock{}, nil, enqueuer, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	upload := test.FakeUpload(db, user, twoPeople())

	// a single-person kind on a group photo may pick one person to focus on
	param := models.StyleSessionIn{
		UploadId:    upload.ID,
		Kind:        models.SessionKindAdvice,
		Subjects:    []string{"person on the right"},
		Preferences: test.NewRefString("  prefers earth tones  "),
	}
	req := test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var session models.StyleSession
	db.Last(&session)
	assert.Equal(t, "person on the right", *session.Subject)
	assert.Equal(t, "prefers earth tones", *session.Preferences)

	// more than one focus person only makes sense for coordinated styling
	param.Subjects = []string{"person on the left", "person on the right"}
	req = test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// the hint must name a detected person
	param.Subjects = []string{"nobody here"}
	req = test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestCreateSessionFreeQuota(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	enqueuer := &test.EnqueuerMock{}
	e := SetupServer(db, &test.StylistModelMock{}, &test.AWSProviderMock{}, nil, enqueuer, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	upload := test.FakeUpload(db, user, onePerson())

	for i := 0; i < 3; i++ {
		db.Create(&models.StyleSession{OwnerID: user.ID, UploadID: upload.ID, Kind: models.SessionKindAdvice, Status: models.SessionStatusCompleted})
	}

	param := models.StyleSessionIn{UploadId: upload.ID, Kind: models.SessionKindAdvice}
	req := test.NewJSONAuthRequest("POST", "/styling/sessions", strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Empty(t, enqueuer.Tasks)
}

func completedAdviceSession(db *gorm.DB, user *models.UserAccount, upload *models.PhotoUpload, combo models.OutfitCombo) *models.StyleSession {
	advice := models.FashionAdvice{
		OutfitSuggestions: []models.OutfitSuggestion{{ID: "sugg-1", Style: "Smart Casual", Description: "Clean lines"}},
		OutfitCombos:      []models.OutfitCombo{combo},
		PersonalizedTips:  []string{"Tuck in the shirt"},
	}
	resultJSON := test.JsonString(advice)
	session := &models.StyleSession{
		OwnerID:    user.ID,
		UploadID:   upload.ID,
		Kind:       models.SessionKindAdvice,
		Status:     models.SessionStatusCompleted,
		ResultJSON: &resultJSON,
	}
	db.Create(session)
	return session
}

func TestGetSessionMergesRatings(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.StylistModelMock{}, &test.AWSProviderMock{}, nil, &test.EnqueuerMock{}, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	upload := test.FakeUpload(db, user, onePerson())

	imageURL := "data:image/png;base64,aW1n"
	combo := models.OutfitCombo{
		ID:       "combo-1",
		Occasion: "Office",
		Top:      &models.ProductSuggestion{Description: "Shirt"},
		Bottom:   &models.ProductSuggestion{Description: "Chinos"},
		Summary:  "A clean office look",
		ImageURL: &imageURL,
	}
	session := completedAdviceSession(db, user, upload, combo)
	db.Create(&models.ComboRating{OwnerID: user.ID, ComboID: "combo-1", Occasion: "Office", Rating: "like"})

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/styling/sessions/%v", session.ID), strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.StyleSessionOut
	json.Unmarshal(rec.Body.Bytes(), &resp)
	assert.NotNil(t, resp.Advice)
	assert.Len(t, resp.Advice.OutfitCombos, 1)
	assert.NotNil(t, resp.Advice.OutfitCombos[0].Rating)
	assert.Equal(t, models.RatingLike, *resp.Advice.OutfitCombos[0].Rating)
}

func TestGetSessionNotOwned(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.StylistModelMock{}, &test.AWSProviderMock{}, nil, &test.EnqueuerMock{}, nil, test.URLCacheMock{})
	owner := test.FakeUser(db)
	stranger := test.FakeUserV2(db, "stranger", "stranger@example.com", nil)
	upload := test.FakeUpload(db, owner, onePerson())
	session := completedAdviceSession(db, owner, upload, models.OutfitCombo{
		ID: "combo-1", Occasion: "Office", Dress: &models.ProductSuggestion{Description: "Dress"},
	})

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/styling/sessions/%v", session.ID), strconv.FormatUint(uint64(stranger.ID), 10), "")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestRegenerateComboEndpoint(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	// the source photo lives behind a presigned read url
	photoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fakejpegbytes"))
	}))
	defer photoServer.Close()

	singleCombo := `{
		"occasion": "ignored by the service",
		"top": {"description": "Fresh shirt", "productName": "Not applicable", "purchaseLink": "Not applicable"},
		"bottom": {"description": "Fresh trousers", "productName": "Not applicable", "purchaseLink": "Not applicable"},
		"dress": {"description": "None", "productName": "Not applicable", "purchaseLink": "Not applicable"},
		"shoes": {"description": "Fresh shoes", "productName": "Not applicable", "purchaseLink": "Not applicable"},
		"accessories": {"description": "Fresh watch", "productName": "Not applicable", "purchaseLink": "Not applicable"},
		"summary": "A fresh take"
	}`
	model := &test.StylistModelMock{StructuredQueue: []string{singleCombo}}
	e := SetupServer(db, model, &test.AWSProviderMock{MockUrl: photoServer.URL}, nil, &test.EnqueuerMock{}, nil, test.URLCacheMock{MockUrl: photoServer.URL})
	user := test.FakeUser(db)
	upload := test.FakeUpload(db, user, onePerson())

	imageURL := "data:image/png;base64,aW1n"
	session := completedAdviceSession(db, user, upload, models.OutfitCombo{
		ID:       "combo-1",
		Occasion: "Office",
		Dress:    &models.ProductSuggestion{Description: "Old dress"},
		Summary:  "The old look",
		ImageURL: &imageURL,
	})
	db.Create(&models.ComboRating{OwnerID: user.ID, ComboID: "combo-1", Occasion: "Office", Rating: "dislike"})

	param := models.RegenerateComboIn{ComboId: "combo-1"}
	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/styling/sessions/%v/regenerate", session.ID), strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fresh models.OutfitCombo
	json.Unmarshal(rec.Body.Bytes(), &fresh)
	assert.NotEqual(t, "combo-1", fresh.ID)
	assert.Equal(t, "Office", fresh.Occasion)

	// the stored dislike conditioned the prompt
	assert.Contains(t, model.Requests[0].Prompt, "materially different")

	// the stored result now carries the fresh combo
	var sessionDb models.StyleSession
	db.First(&sessionDb, session.ID)
	var advice models.FashionAdvice
	json.Unmarshal([]byte(*sessionDb.ResultJSON), &advice)
	assert.Len(t, advice.OutfitCombos, 1)
	assert.Equal(t, fresh.ID, advice.OutfitCombos[0].ID)
}

func TestRegenerateComboTextFailureKeepsResult(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	photoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fakejpegbytes"))
	}))
	defer photoServer.Close()

	model := &test.StylistModelMock{StructuredErr: fmt.Errorf("model overloaded")}
	e := SetupServer(db, model, &test.AWSProviderMock{MockUrl: photoServer.URL}, nil, &test.EnqueuerMock{}, nil, test.URLCacheMock{MockUrl: photoServer.URL})
	user := test.FakeUser(db)
	upload := test.FakeUpload(db, user, onePerson())
	session := completedAdviceSession(db, user, upload, models.OutfitCombo{
		ID: "combo-1", Occasion: "Office", Dress: &models.ProductSuggestion{Description: "Old dress"},
	})
	before := *session.ResultJSON

	param := models.RegenerateComboIn{ComboId: "combo-1"}
	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/styling/sessions/%v/regenerate", session.ID), strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	var sessionDb models.StyleSession
	db.First(&sessionDb, session.ID)
	assert.Equal(t, before, *sessionDb.ResultJSON)
}

func TestRegenerateComboNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.StylistModelMock{}, &test.AWSProviderMock{}, nil, &test.EnqueuerMock{}, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	upload := test.FakeUpload(db, user, onePerson())
	session := completedAdviceSession(db, user, upload, models.OutfitCombo{
		ID: "combo-1", Occasion: "Office", Dress: &models.ProductSuggestion{Description: "Old dress"},
	})

	param := models.RegenerateComboIn{ComboId: "missing-combo"}
	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/styling/sessions/%v/regenerate", session.ID), strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
