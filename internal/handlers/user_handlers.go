package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"social-app/internal/database"
	"social-app/internal/models"
	"social-app/internal/monitoring"
	"social-app/internal/notify"
	"social-app/internal/proximity"
	"social-app/pkg/logger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LocationListener is told after a user's stored location changed.
type LocationListener interface {
	LocationUpdated(ctx context.Context, userID string)
}

// OnlineLookup reports whether a user holds a live connection and on which
// instance.
type OnlineLookup interface {
	Lookup(ctx context.Context, userID string) (string, bool, error)
}

// LocalLookup answers from this process's connection registry, for
// deployments without a shared presence store.
type LocalLookup struct {
	Registry interface{ IsOnline(userID string) bool }
	Instance string
}

func (l LocalLookup) Lookup(_ context.Context, userID string) (string, bool, error) {
	if !l.Registry.IsOnline(userID) {
		return "", false, nil
	}
	return l.Instance, true, nil
}

type UserHandlers struct {
	db        database.Database
	proximity *proximity.Service
	presence  LocationListener
	online    OnlineLookup
	notifier  *notify.Notifier
	guard     *monitoring.Guard
}

func NewUserHandlers(db database.Database, prox *proximity.Service, presence LocationListener, online OnlineLookup, notifier *notify.Notifier, guard *monitoring.Guard) *UserHandlers {
	return &UserHandlers{
		db:        db,
		proximity: prox,
		presence:  presence,
		online:    online,
		notifier:  notifier,
		guard:     guard,
	}
}

// UpdateLocation stores or clears the caller's coordinates, then refreshes
// nearest-users for the caller and every online user with a location.
func (h *UserHandlers) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req models.LocationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	var loc *models.Location
	switch {
	case req.Longitude == nil && req.Latitude == nil:
	case req.Longitude == nil || req.Latitude == nil:
		http.Error(w, "longitude and latitude go together", http.StatusBadRequest)
		return
	case *req.Longitude < -180 || *req.Longitude > 180 || *req.Latitude < -90 || *req.Latitude > 90:
		http.Error(w, "coordinates out of range", http.StatusBadRequest)
		return
	default:
		loc = &models.Location{Longitude: *req.Longitude, Latitude: *req.Latitude}
	}

	if err := h.db.UpdateUserLocation(r.Context(), userID, loc); err != nil {
		logger.Error("Update location error: %v", err)
		http.Error(w, "could not update location", http.StatusInternalServerError)
		return
	}

	h.presence.LocationUpdated(context.WithoutCancel(r.Context()), userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandlers) Nearby(w http.ResponseWriter, r *http.Request) {
	users, err := h.proximity.NearestUsers(r.Context(), UserID(r.Context()))
	if err != nil {
		logger.Error("Nearby users error: %v", err)
		http.Error(w, "could not load nearby users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.NearbyUser{}
	}
	writeJSON(w, http.StatusOK, models.NearestUsersPayload{Users: users})
}

// Online reports whether the given user is connected right now.
func (h *UserHandlers) Online(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := h.db.GetUserByID(r.Context(), userID); err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	_, online, err := h.online.Lookup(r.Context(), userID)
	if err != nil {
		logger.Error("Presence lookup error: %v", err)
		http.Error(w, "could not look up presence", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, models.OnlineStatus{UserID: userID, Online: online})
}

// Follow records a follow edge. A new edge creates an interaction
// notification and pushes the followee's follower and unread counts.
func (h *UserHandlers) Follow(w http.ResponseWriter, r *http.Request) {
	followerID := UserID(r.Context())
	followeeID := chi.URLParam(r, "userID")
	if followeeID == followerID {
		http.Error(w, "cannot follow yourself", http.StatusBadRequest)
		return
	}
	if _, err := h.db.GetUserByID(r.Context(), followeeID); err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	created, err := h.db.Follow(r.Context(), followerID, followeeID)
	if err != nil {
		logger.Error("Follow error: %v", err)
		http.Error(w, "could not follow", http.StatusInternalServerError)
		return
	}

	if created {
		ctx := context.WithoutCancel(r.Context())
		fields := []zap.Field{zap.String("follower", followerID), zap.String("followee", followeeID)}
		h.guard.Run(ctx, "follow_notify", func(ctx context.Context) error {
			if err := h.db.CreateNotification(ctx, &models.Notification{
				Kind:       models.NotificationInteraction,
				FromUserID: followerID,
				ToUserID:   followeeID,
				Content:    "started following you",
				ReadStatus: models.ReadStatusUnread,
			}); err != nil {
				return err
			}
			followers, err := h.db.CountFollowers(ctx, followeeID)
			if err != nil {
				return err
			}
			if err := h.notifier.PushCount(ctx, followeeID, models.EventFollowersCount, followers); err != nil {
				return err
			}
			return h.notifier.PushUnreadCount(ctx, followeeID)
		}, fields...)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"created": created})
}

// Visit records a profile visit and pushes the visitor count to the owner.
func (h *UserHandlers) Visit(w http.ResponseWriter, r *http.Request) {
	visitorID := UserID(r.Context())
	ownerID := chi.URLParam(r, "userID")
	if ownerID == visitorID {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if _, err := h.db.GetUserByID(r.Context(), ownerID); err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	if err := h.db.RecordVisit(r.Context(), visitorID, ownerID); err != nil {
		logger.Error("Record visit error: %v", err)
		http.Error(w, "could not record visit", http.StatusInternalServerError)
		return
	}

	h.guard.Run(context.WithoutCancel(r.Context()), "visit_notify", func(ctx context.Context) error {
		visitors, err := h.db.CountVisitors(ctx, ownerID)
		if err != nil {
			return err
		}
		return h.notifier.PushCount(ctx, ownerID, models.EventVisitorsCount, visitors)
	}, zap.String("visitor", visitorID), zap.String("owner", ownerID))

	w.WriteHeader(http.StatusNoContent)
}
