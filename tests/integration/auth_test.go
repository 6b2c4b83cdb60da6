package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gritAPI/handlers"
	"gritAPI/internal/cache"
	"gritAPI/internal/user"
	"gritAPI/middleware"
	"gritAPI/services"
	"gritAPI/tests/helpers"
)

func createTestProfile(t *testing.T, userService *services.UserService, clerkID string) *user.Profile {
	t.Helper()
	ctx := context.Background()

	profile, err := userService.SyncClerkUser(ctx, &user.ClerkUserData{
		ID:        clerkID,
		Username:  "testauth",
		FirstName: "Test",
		LastName:  "Auth",
		EmailAddresses: []struct {
			ID           string `json:"id"`
			EmailAddress string `json:"email_address"`
			Verification struct {
				Status string `json:"status"`
			} `json:"verification"`
		}{
			{ID: "email_123", EmailAddress: "testauth@example.com"},
		},
		PrimaryEmailAddressID: "email_123",
	})
	require.NoError(t, err)
	return profile
}

func TestGetProfile_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool, cache.New(time.Minute))
	userHandler := handlers.NewUserHandler(userService)

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	created := createTestProfile(t, userService, clerkID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)

	// Simulate successful auth middleware
	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()

	userHandler.GetProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response user.Profile
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, created.ID, response.ID)
	assert.Equal(t, clerkID, response.ClerkID)
	assert.Equal(t, "testauth@example.com", response.Email)
	assert.Equal(t, "testauth", response.Username)
}

func TestGetProfile_Unauthenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool, cache.New(time.Minute))
	userHandler := handlers.NewUserHandler(userService)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	rr := httptest.NewRecorder()

	userHandler.GetProfile(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var response map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Contains(t, response["error"], "not authenticated")
}

func TestUpdateProfile_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool, cache.New(time.Minute))
	userHandler := handlers.NewUserHandler(userService)

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	createTestProfile(t, userService, clerkID)

	updateData := `{"username": "newusername", "display_name": "New Name", "timezone": "Europe/Sofia"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/user", strings.NewReader(updateData))
	req.Header.Set("Content-Type", "application/json")

	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()

	userHandler.UpdateProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response user.Profile
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "newusername", response.Username)
	require.NotNil(t, response.DisplayName)
	assert.Equal(t, "New Name", *response.DisplayName)
	assert.Equal(t, "Europe/Sofia", response.Timezone)
}

func TestDeleteAccount_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool, cache.New(time.Minute))
	userHandler := handlers.NewUserHandler(userService)

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	createTestProfile(t, userService, clerkID)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/user", nil)

	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()

	userHandler.DeleteAccount(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	_, err := userService.GetProfileByClerkID(context.Background(), clerkID)
	assert.Error(t, err, "Profile should be deleted")
}
