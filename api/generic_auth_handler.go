package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

// SignupRequest is the payload for user registration.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
}

// LoginRequest is the payload for user login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyOTPRequest is the payload for verifying an emailed OTP.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ForgotPasswordRequest is the payload for starting a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the payload for completing a password reset.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

const otpTTL = 15 * time.Minute

// SignupHandler registers a user and emails a verification OTP.
func SignupHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "signup").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SignupRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		utils.RespondError(w, reqLogger, "Name, email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	collection := utils.GetCollection(config.MongoDBName, "users")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var existing models.User
	err := collection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&existing)
	if err == nil {
		utils.RespondError(w, reqLogger, "An account with this email already exists", http.StatusConflict)
		return
	}
	if err != mongo.ErrNoDocuments {
		reqLogger.Error().Err(err).Msg("user lookup failed")
		utils.RespondError(w, reqLogger, "Could not check account", http.StatusInternalServerError)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		reqLogger.Error().Err(err).Msg("hash password failed")
		utils.RespondError(w, reqLogger, "Could not create account", http.StatusInternalServerError)
		return
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		reqLogger.Error().Err(err).Msg("otp generation failed")
		utils.RespondError(w, reqLogger, "Could not create account", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         req.Name,
		Email:        req.Email,
		Password:     string(hashed),
		Gender:       req.Gender,
		Status:       "pending",
		Role:         "user",
		OTP:          otp,
		OTPExpiresAt: now.Add(otpTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := collection.InsertOne(ctx, user); err != nil {
		reqLogger.Error().Err(err).Msg("insert user failed")
		utils.RespondError(w, reqLogger, "Could not create account", http.StatusInternalServerError)
		return
	}

	if err := utils.SendEmail(user.Name, user.Email, "Verify your ThreadSwap email",
		fmt.Sprintf("Your verification code is %s. It expires in 15 minutes.", otp),
		fmt.Sprintf("<p>Your verification code is <strong>%s</strong>. It expires in 15 minutes.</p>", otp)); err != nil {
		// The account exists either way; the user can request another
		// code through forgot-password.
		reqLogger.Warn().Err(err).Str("email", user.Email).Msg("verification email failed")
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account created. Check your email for the verification code.",
		"user":    user,
	})
}

// VerifyOTPHandler confirms an emailed code, completing signup or
// clearing the way for a password reset.
func VerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "verify_otp").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VerifyOTPRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.OTP == "" {
		utils.RespondError(w, reqLogger, "Email and code are required", http.StatusBadRequest)
		return
	}

	collection := utils.GetCollection(config.MongoDBName, "users")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	if err := collection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&user); err != nil {
		utils.RespondError(w, reqLogger, "Invalid email or code", http.StatusUnauthorized)
		return
	}
	if user.OTP == "" || user.OTP != req.OTP || time.Now().After(user.OTPExpiresAt) {
		utils.RespondError(w, reqLogger, "Invalid or expired code", http.StatusUnauthorized)
		return
	}

	if user.Status == "pending" {
		_, err := collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
			"$set":   bson.M{"status": "active", "updated_at": time.Now()},
			"$unset": bson.M{"otp": "", "otp_expires_at": ""},
		})
		if err != nil {
			reqLogger.Error().Err(err).Msg("activate user failed")
			utils.RespondError(w, reqLogger, "Could not verify account", http.StatusInternalServerError)
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"message": "Email verified. You can now log in.",
		})
		return
	}

	// Active account: this code belongs to a password reset. Leave it in
	// place, ResetPasswordHandler consumes it.
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "Code verified. You can now reset your password.",
	})
}

// LoginHandler exchanges credentials for a JWT.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "login").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		utils.RespondError(w, reqLogger, "Email and password are required", http.StatusBadRequest)
		return
	}

	collection := utils.GetCollection(config.MongoDBName, "users")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	if err := collection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&user); err != nil {
		utils.RespondError(w, reqLogger, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.RespondError(w, reqLogger, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if user.Status == "pending" {
		utils.RespondError(w, reqLogger, "Please verify your email first", http.StatusForbidden)
		return
	}

	token, err := utils.GenerateToken(user.ID.Hex(), user.Role)
	if err != nil {
		reqLogger.Error().Err(err).Msg("token generation failed")
		utils.RespondError(w, reqLogger, "Could not log in", http.StatusInternalServerError)
		return
	}

	reqLogger.Info().Str("user", user.ID.Hex()).Msg("login")
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// ForgotPasswordHandler emails a reset code. Responds identically whether
// or not the account exists.
func ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "forgot_password").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ForgotPasswordRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		utils.RespondError(w, reqLogger, "Email is required", http.StatusBadRequest)
		return
	}

	neutral := map[string]string{"message": "If that account exists, a reset code is on its way."}

	collection := utils.GetCollection(config.MongoDBName, "users")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	if err := collection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&user); err != nil {
		utils.RespondJSON(w, http.StatusOK, neutral)
		return
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		reqLogger.Error().Err(err).Msg("otp generation failed")
		utils.RespondError(w, reqLogger, "Could not start reset", http.StatusInternalServerError)
		return
	}

	_, err = collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
		"$set": bson.M{"otp": otp, "otp_expires_at": time.Now().Add(otpTTL)},
	})
	if err != nil {
		reqLogger.Error().Err(err).Msg("store reset otp failed")
		utils.RespondError(w, reqLogger, "Could not start reset", http.StatusInternalServerError)
		return
	}

	if err := utils.SendEmail(user.Name, user.Email, "Reset your ThreadSwap password",
		fmt.Sprintf("Your reset code is %s. It expires in 15 minutes.", otp),
		fmt.Sprintf("<p>Your reset code is <strong>%s</strong>. It expires in 15 minutes.</p>", otp)); err != nil {
		reqLogger.Warn().Err(err).Str("email", user.Email).Msg("reset email failed")
	}

	utils.RespondJSON(w, http.StatusOK, neutral)
}

// ResetPasswordHandler sets a new password after OTP verification.
func ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "reset_password").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ResetPasswordRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.OTP == "" || len(req.NewPassword) < 8 {
		utils.RespondError(w, reqLogger, "Email, code and a new password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	collection := utils.GetCollection(config.MongoDBName, "users")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	if err := collection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&user); err != nil {
		utils.RespondError(w, reqLogger, "Invalid email or code", http.StatusUnauthorized)
		return
	}
	if user.OTP == "" || user.OTP != req.OTP || time.Now().After(user.OTPExpiresAt) {
		utils.RespondError(w, reqLogger, "Invalid or expired code", http.StatusUnauthorized)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		reqLogger.Error().Err(err).Msg("hash password failed")
		utils.RespondError(w, reqLogger, "Could not reset password", http.StatusInternalServerError)
		return
	}

	_, err = collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
		"$set":   bson.M{"password": string(hashed), "updated_at": time.Now()},
		"$unset": bson.M{"otp": "", "otp_expires_at": ""},
	})
	if err != nil {
		reqLogger.Error().Err(err).Msg("update password failed")
		utils.RespondError(w, reqLogger, "Could not reset password", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated. You can now log in.",
	})
}
