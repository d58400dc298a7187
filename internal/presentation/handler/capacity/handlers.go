package capacity

import (
	"errors"
	"net/http"

	"github.com/sdv1812/sprintlet/internal/domain"
	"github.com/sdv1812/sprintlet/internal/infrastructure/json"
)

// Handler serves the standalone sprint-capacity calculator. It is stateless;
// nothing here touches the store.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) CalculateHandler(w http.ResponseWriter, r *http.Request) {
	var input domain.CapacityInput
	if err := json.Read(r, &input); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if input.SprintDays < 0 {
		json.WriteValidationError(w, errors.New("sprintDays must not be negative"))
		return
	}
	for _, loc := range input.Locations {
		if loc.NumEngineers < 0 || loc.PublicHolidays < 0 || loc.LeaveDays < 0 {
			json.WriteValidationError(w, errors.New("location values must not be negative"))
			return
		}
	}

	result := domain.CalculateCapacity(input)
	json.Write(w, http.StatusOK, result)
}
