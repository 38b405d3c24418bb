package httpservice

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	flowerboxerrors "github.com/Flowerbox-Finance/Flowerbox-Finance/pkg/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const identityHeader = "X-Ledger-Identity"

var somethingWentWrong = flowerboxerrors.INTERNAL_ERROR.New("something went wrong")

type errorResponse struct {
	Code     uint16            `json:"code"`
	Name     string            `json:"name"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// requestLogger logs every request through logrus, failed ones included.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		entry := log.WithFields(log.Fields{
			"method":   c.Request().Method,
			"path":     c.Path(),
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Debug("http request failed")
			return err
		}
		entry.WithField("status", c.Response().Status).Debug("http request")
		return nil
	}
}

// panicRecovery converts panics into INTERNAL_ERROR responses instead of
// crashing the server.
func panicRecovery(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("panic-recovery middleware recovered from panic: %v", r)
				log.Errorf("stack trace: %v", string(debug.Stack()))
				err = somethingWentWrong
			}
		}()

		return next(c)
	}
}

// requireAdmin rejects requests whose identity header doesn't match the
// configured admin.
func requireAdmin(admin string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := c.Request().Header.Get(identityHeader)
			if !common.IsHexAddress(caller) ||
				common.HexToAddress(caller) != common.HexToAddress(admin) {
				return flowerboxerrors.NOT_ADMIN.New("caller is not the admin").
					WithMetadata(flowerboxerrors.AdminMetadata{Caller: caller})
			}
			return next(c)
		}
	}
}

// errorHandler writes every error as {code, name, message, metadata} with the
// http status mapped from the error grpc code.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, resp := toErrorResponse(err)
	if status >= http.StatusInternalServerError {
		log.WithField("path", c.Path()).WithError(err).Error("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		log.WithError(err).Warn("failed to write error response")
	}
}

func toErrorResponse(err error) (int, errorResponse) {
	var structuredErr flowerboxerrors.Error
	if errors.As(err, &structuredErr) {
		return runtime.HTTPStatusFromCode(structuredErr.GrpcCode()), errorResponse{
			Code:     structuredErr.Code(),
			Name:     structuredErr.CodeName(),
			Message:  structuredErr.Error(),
			Metadata: structuredErr.Metadata(),
		}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, errorResponse{
			Name:    strings.ToUpper(strings.ReplaceAll(http.StatusText(httpErr.Code), " ", "_")),
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	}

	return http.StatusInternalServerError, errorResponse{
		Code:    flowerboxerrors.INTERNAL_ERROR.Code,
		Name:    flowerboxerrors.INTERNAL_ERROR.Name,
		Message: err.Error(),
	}
}
