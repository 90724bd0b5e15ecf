package webapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/forms"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/listings"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/pages"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	pages  *pages.Controller
	chrome *chrome.Chrome
	logger *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type mediaRequest struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type listingRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	EndsAt      string         `json:"endsAt"`
	Tags        string         `json:"tags"`
	Media       []mediaRequest `json:"media"`
	TimeZone    string         `json:"timeZone"`
}

type bidRequest struct {
	Amount string `json:"amount"`
}

type avatarRequest struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type sessionResponse struct {
	SignedIn bool   `json:"signedIn"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Credits  *int64 `json:"credits,omitempty"`
}

func (handler *httpHandler) handleChrome(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.chrome.Badges())
}

func (handler *httpHandler) handleSession(ctx *gin.Context) {
	auth := handler.pages.Session().Auth()
	if !auth.SignedIn() {
		ctx.JSON(http.StatusOK, sessionResponse{})
		return
	}
	ctx.JSON(http.StatusOK, sessionResponse{SignedIn: true, Name: auth.Name, Email: auth.Email, Credits: auth.Credits})
}

func (handler *httpHandler) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if !bindJSON(ctx, &request) {
		return
	}
	respondResult(ctx, handler.pages.Login(ctx.Request.Context(), forms.LoginForm{Email: request.Email, Password: request.Password}))
}

func (handler *httpHandler) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if !bindJSON(ctx, &request) {
		return
	}
	respondResult(ctx, handler.pages.Register(ctx.Request.Context(), forms.RegisterForm{
		Name:            request.Name,
		Email:           request.Email,
		Password:        request.Password,
		ConfirmPassword: request.ConfirmPassword,
	}))
}

func (handler *httpHandler) handleLogout(ctx *gin.Context) {
	respondResult(ctx, handler.pages.Logout(ctx.Request.Context()))
}

func (handler *httpHandler) handleListings(ctx *gin.Context) {
	route := listings.RouteFromValues(ctx.Request.URL.Query())
	ctx.JSON(http.StatusOK, handler.pages.Listings(ctx.Request.Context(), route))
}

func (handler *httpHandler) handleListing(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.pages.Listing(ctx.Request.Context(), ctx.Param("id")))
}

func (handler *httpHandler) handleEditor(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.pages.LoadEditor(ctx.Request.Context(), ctx.Param("id")))
}

func (handler *httpHandler) handleCreateListing(ctx *gin.Context) {
	form, ok := handler.bindListing(ctx)
	if !ok {
		return
	}
	respondResult(ctx, handler.pages.CreateListing(ctx.Request.Context(), form))
}

func (handler *httpHandler) handleUpdateListing(ctx *gin.Context) {
	form, ok := handler.bindListing(ctx)
	if !ok {
		return
	}
	respondResult(ctx, handler.pages.UpdateListing(ctx.Request.Context(), ctx.Param("id"), form))
}

func (handler *httpHandler) handleDeleteListing(ctx *gin.Context) {
	respondResult(ctx, handler.pages.DeleteListing(ctx.Request.Context(), ctx.Param("id")))
}

func (handler *httpHandler) handlePlaceBid(ctx *gin.Context) {
	var request bidRequest
	if !bindJSON(ctx, &request) {
		return
	}
	view, result := handler.pages.PlaceBid(ctx.Request.Context(), ctx.Param("id"), request.Amount)
	ctx.JSON(resultStatus(result), gin.H{"result": result, "listing": view})
}

func (handler *httpHandler) handleProfile(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.pages.Profile(ctx.Request.Context(), ctx.Query("name")))
}

func (handler *httpHandler) handleAvatar(ctx *gin.Context) {
	var request avatarRequest
	if !bindJSON(ctx, &request) {
		return
	}
	respondResult(ctx, handler.pages.UpdateAvatar(ctx.Request.Context(), forms.AvatarForm{URL: request.URL, Alt: request.Alt}))
}

func (handler *httpHandler) handleCredits(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.pages.Credits(ctx.Request.Context()))
}

func (handler *httpHandler) bindListing(ctx *gin.Context) (forms.ListingForm, bool) {
	var request listingRequest
	if !bindJSON(ctx, &request) {
		return forms.ListingForm{}, false
	}
	location := time.Local
	if zone := strings.TrimSpace(request.TimeZone); zone != "" {
		loaded, err := time.LoadLocation(zone)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_time_zone", "unknown time zone "+strconv.Quote(zone)))
			return forms.ListingForm{}, false
		}
		location = loaded
	}
	media := make([]forms.MediaField, 0, len(request.Media))
	for _, item := range request.Media {
		media = append(media, forms.MediaField{URL: item.URL, Alt: item.Alt})
	}
	return forms.ListingForm{
		Title:       request.Title,
		Description: request.Description,
		EndsAt:      request.EndsAt,
		Tags:        request.Tags,
		Media:       media,
		Location:    location,
	}, true
}

func bindJSON(ctx *gin.Context, target any) bool {
	if err := ctx.ShouldBindJSON(target); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return false
	}
	return true
}

func respondResult(ctx *gin.Context, result pages.Result) {
	ctx.JSON(resultStatus(result), result)
}

// resultStatus maps a rejected form to 422; everything else renders as 200.
func resultStatus(result pages.Result) int {
	if result.Status.Failed() {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}
