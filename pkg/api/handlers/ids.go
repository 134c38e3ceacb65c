package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// parseID decodes a 24-hex-character object id from a URL parameter.
func parseID(raw string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
