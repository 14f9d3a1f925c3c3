package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

const oauthStateCookie = "ts_oauth_state"

// getOauthConfig builds the config lazily; the env vars are not loaded
// yet at package init time.
func getOauthConfig() *oauth2.Config {
	return &oauth2.Config{
		RedirectURL:  config.GoogleRedirectURL,
		ClientID:     config.GoogleClientID,
		ClientSecret: config.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

// GoogleLoginHandler redirects to Google with a one-shot state nonce.
func GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, getOauthConfig().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleCallbackHandler completes the OAuth exchange, provisions the
// account on first login and returns a JWT.
func GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "google_callback").Logger()

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || r.FormValue("state") != cookie.Value {
		utils.RespondError(w, reqLogger, "OAuth state mismatch", http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		utils.RespondError(w, reqLogger, "Missing authorization code", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	token, err := getOauthConfig().Exchange(ctx, code)
	if err != nil {
		reqLogger.Error().Err(err).Msg("code exchange failed")
		utils.RespondError(w, reqLogger, "Could not complete Google sign-in", http.StatusBadGateway)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/oauth2/v2/userinfo?access_token="+token.AccessToken, nil)
	if err != nil {
		utils.RespondError(w, reqLogger, "Could not complete Google sign-in", http.StatusInternalServerError)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		reqLogger.Error().Err(err).Msg("userinfo fetch failed")
		utils.RespondError(w, reqLogger, "Could not complete Google sign-in", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.Email == "" {
		reqLogger.Error().Err(err).Msg("userinfo decode failed")
		utils.RespondError(w, reqLogger, "Could not complete Google sign-in", http.StatusBadGateway)
		return
	}

	collection := utils.GetCollection(config.MongoDBName, "users")

	var user models.User
	err = collection.FindOne(ctx, bson.M{"email": info.Email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		now := time.Now()
		user = models.User{
			ID:        primitive.NewObjectID(),
			Name:      info.Name,
			Email:     info.Email,
			Status:    "active", // Google already verified the address
			Role:      "user",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := collection.InsertOne(ctx, user); err != nil {
			reqLogger.Error().Err(err).Msg("provision google user failed")
			utils.RespondError(w, reqLogger, "Could not complete Google sign-in", http.StatusInternalServerError)
			return
		}
		reqLogger.Info().Str("user", user.ID.Hex()).Msg("account provisioned via google")
	} else if err != nil {
		reqLogger.Error().Err(err).Msg("user lookup failed")
		utils.RespondError(w, reqLogger, "Could not complete Google sign-in", http.StatusInternalServerError)
		return
	}

	jwtToken, err := utils.GenerateToken(user.ID.Hex(), user.Role)
	if err != nil {
		reqLogger.Error().Err(err).Msg("token generation failed")
		utils.RespondError(w, reqLogger, "Could not complete Google sign-in", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   jwtToken,
		"user":    user,
	})
}
