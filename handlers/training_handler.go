package handlers

import (
	"net/http"

	"github.com/hajri-app/hajriback/recognition"
)

type TrainingHandler struct {
	Trainer *recognition.Trainer
}

// Train rebuilds the embedding index from every student's image folder. The
// call blocks until the rebuild completes or fails; concurrent requests are
// serialized by the trainer.
func (th *TrainingHandler) Train(w http.ResponseWriter, r *http.Request) {
	ok, message := th.Trainer.Train()
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]interface{}{"success": ok, "message": message})
}
