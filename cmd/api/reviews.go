package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"academy/internal/domain/coursereviews"
	"academy/internal/realtime"

	"github.com/go-chi/chi/v5"
)

const (
	reviewListLimit  = 50
	defaultListLimit = 20
	streamHeartbeat  = 25 * time.Second
	publishTimeout   = 3 * time.Second
)

type createReviewPayload struct {
	ReviewerName string `json:"reviewer_name" validate:"required,max=80"`
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
	Comment      string `json:"comment" validate:"omitempty,max=500"`
}

func courseSlugParam(r *http.Request) (string, error) {
	slug := chi.URLParam(r, "courseSlug")
	if err := Validate.Var(slug, "required,slug,max=100"); err != nil {
		return "", errors.New("invalid course slug")
	}
	return slug, nil
}

// createCourseReviewHandler godoc
//
//	@Summary		Review a course
//	@Description	Stores a rating with an optional comment and pushes it to live viewers of the course page.
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			courseSlug	path		string				true	"Course slug"
//	@Param			payload		body		createReviewPayload	true	"Review"
//	@Success		201			{object}	coursereviews.Review
//	@Failure		400			{object}	error
//	@Failure		429			{object}	error
//	@Failure		500			{object}	error
//	@Router			/courses/{courseSlug}/reviews [post]
func (app *application) createCourseReviewHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := courseSlugParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload createReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	review := &coursereviews.Review{
		CourseSlug:   slug,
		ReviewerName: strings.TrimSpace(payload.ReviewerName),
		Rating:       payload.Rating,
		Comment:      strings.TrimSpace(payload.Comment),
	}

	if err := app.store.CourseReviews.Create(r.Context(), review); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), publishTimeout)
	defer cancel()
	if err := app.broker.Publish(ctx, realtime.ReviewsChannel(slug), realtime.EventInsert, review); err != nil {
		app.logger.Warnw("failed to publish review", "course", slug, "error", err)
	}

	app.jsonResponse(w, http.StatusCreated, review)
}

// getCourseReviewsHandler godoc
//
//	@Summary		Course reviews
//	@Description	Latest reviews for a course with the review count and average rating.
//	@Tags			reviews
//	@Produce		json
//	@Param			courseSlug	path		string	true	"Course slug"
//	@Param			limit		query		int		false	"Max reviews"	default(20)
//	@Success		200			{object}	map[string]interface{}
//	@Failure		400			{object}	error
//	@Failure		500			{object}	error
//	@Router			/courses/{courseSlug}/reviews [get]
func (app *application) getCourseReviewsHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := courseSlugParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, reviewListLimit)
		}
	}

	reviews, err := app.store.CourseReviews.ListByCourse(r.Context(), slug, limit)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []coursereviews.Review{}
	}

	stats, err := app.store.CourseReviews.Stats(r.Context(), slug)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"reviews":       reviews,
		"total_reviews": stats.Total,
		"average":       math.Round(stats.Average*10) / 10,
	}

	app.jsonResponse(w, http.StatusOK, response)
}

// streamCourseReviewsHandler godoc
//
//	@Summary		Live course reviews
//	@Description	Server-Sent Events stream; each new review arrives as an "INSERT" event.
//	@Tags			reviews
//	@Produce		text/event-stream
//	@Param			courseSlug	path	string	true	"Course slug"
//	@Success		200
//	@Router			/courses/{courseSlug}/reviews/stream [get]
func (app *application) streamCourseReviewsHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := courseSlugParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	rc := http.NewResponseController(w)

	events, unsubscribe, err := app.broker.Subscribe(r.Context(), realtime.ReviewsChannel(slug))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		app.logger.Errorw("streaming unsupported", "error", err)
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				app.logger.Errorw("encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
