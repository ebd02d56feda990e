package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ovlasenko/webshop-backend/api/middleware"
	"github.com/ovlasenko/webshop-backend/api/responses"
	"github.com/ovlasenko/webshop-backend/api/validators"
	notificationssvc "github.com/ovlasenko/webshop-backend/internal/notifications"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

type notificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ListNotifications returns the caller's notifications newest-first.
func ListNotifications(repo *notificationssvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		rows, err := repo.ListByUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]notificationResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, notificationResponse{
				ID:        row.ID,
				Subject:   row.Subject,
				Body:      row.Body,
				ReadAt:    row.ReadAt,
				CreatedAt: row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
