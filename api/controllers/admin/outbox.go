package admin

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
)

func ListDeadLetters(svc outbox.DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("dead letter"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter outbox.DeadLetterFilter
		if filter.Reason, err = optionalEnum(r, "reason", enums.ParseOutboxDLQErrorReason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.EventType, err = optionalEnum(r, "event_type", enums.ParseOutboxEventType); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ReplayDeadLetter puts a dead-lettered event back in the publish queue.
func ReplayDeadLetter(svc outbox.DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return byID("dead letter", svc != nil, "eventId", logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.Replay(r.Context(), id)
	})
}
