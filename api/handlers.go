// Package api serves the remote task store over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
	"kanban-board/remote"
)

const (
	requestBodyMaxSize = 64 * 1024

	routeTasks = "/api/tasks"
	routeTask  = "/api/tasks/:id"
)

// Register wires up all API routes on the provided Echo instance. deduper
// may be nil, in which case Idempotency-Key headers are ignored.
func Register(e *echo.Echo, store remote.Adapter, deduper Deduper, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.GET(routeTasks, getTasks(store, logger))
	e.POST(routeTasks, postTask(store, deduper, logger))
	e.PATCH(routeTask, patchTask(store, logger))
	e.DELETE(routeTask, deleteTask(store, logger))
	e.GET("/healthz", healthz())
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// instrument starts request metrics and swaps the request context for the
// span context.
func instrument(c echo.Context, logger *log.Logger, route string) (*requestMetrics, context.Context) {
	metrics, spanCtx := newRequestMetrics(c.Request().Context(), logger, c.Request().Method, route)
	c.SetRequest(c.Request().WithContext(spanCtx))
	return metrics, spanCtx
}

func getTasks(store remote.Adapter, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := instrument(c, logger, routeTasks)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		storeStart := time.Now()
		tasks, storeErr := store.List(ctx)
		metrics.ObserveStore(time.Since(storeStart))
		if storeErr != nil {
			metrics.SetErrorStage("store")
			return writeStoreError(c, storeErr)
		}
		metrics.SetTasksReturned(len(tasks))
		if tasks == nil {
			tasks = []domain.Task{}
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTask(store remote.Adapter, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := instrument(c, logger, routeTasks)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var nt domain.NewTask
		decodeStart := time.Now()
		decodeErr := decodeBody(c.Request().Body, &nt)
		metrics.ObserveDecode(time.Since(decodeStart))
		if decodeErr != nil {
			metrics.SetErrorStage("decode")
			return writeError(c, http.StatusBadRequest, "invalid body")
		}
		if vErr := nt.Validate(); vErr != nil {
			metrics.SetErrorStage("validate")
			return writeError(c, http.StatusBadRequest, vErr.Error())
		}

		key := strings.TrimSpace(c.Request().Header.Get(remote.HeaderIdempotencyKey))
		if key != "" && deduper != nil {
			added, dErr := deduper.Add(ctx, key)
			if dErr != nil {
				metrics.SetErrorStage("dedupe")
				logger.WithError(dErr).Error("dedupe failed")
				return writeError(c, http.StatusServiceUnavailable, "dedupe unavailable")
			}
			if !added {
				metrics.SetErrorStage("duplicate")
				return writeError(c, http.StatusConflict, "duplicate request")
			}
		}

		storeStart := time.Now()
		created, storeErr := store.Create(ctx, nt)
		metrics.ObserveStore(time.Since(storeStart))
		if storeErr != nil {
			metrics.SetErrorStage("store")
			if key != "" && deduper != nil {
				if rErr := deduper.Remove(context.WithoutCancel(ctx), key); rErr != nil {
					logger.WithError(rErr).WithField("key", key).Warn("release idempotency key failed")
				}
			}
			return writeStoreError(c, storeErr)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func patchTask(store remote.Adapter, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := instrument(c, logger, routeTask)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var patch domain.TaskPatch
		decodeStart := time.Now()
		decodeErr := decodeBody(c.Request().Body, &patch)
		metrics.ObserveDecode(time.Since(decodeStart))
		if decodeErr != nil {
			metrics.SetErrorStage("decode")
			return writeError(c, http.StatusBadRequest, "invalid body")
		}
		if vErr := patch.Validate(); vErr != nil {
			metrics.SetErrorStage("validate")
			return writeError(c, http.StatusBadRequest, vErr.Error())
		}

		storeStart := time.Now()
		updated, storeErr := store.Update(ctx, c.Param("id"), patch)
		metrics.ObserveStore(time.Since(storeStart))
		if storeErr != nil {
			metrics.SetErrorStage("store")
			return writeStoreError(c, storeErr)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(store remote.Adapter, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := instrument(c, logger, routeTask)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		storeStart := time.Now()
		storeErr := store.Delete(ctx, c.Param("id"))
		metrics.ObserveStore(time.Since(storeStart))
		if storeErr != nil {
			metrics.SetErrorStage("store")
			return writeStoreError(c, storeErr)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func decodeBody(body io.Reader, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, requestBodyMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, remote.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeStoreError(c echo.Context, err error) error {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return writeError(c, status, err.Error())
}

func writeError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}
