package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbus/core/notification"
)

type (
	NotificationService interface {
		Send(ctx context.Context, nn notification.NewNotification) (notification.Notification, error)
		Query(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error)
		GetByID(ctx context.Context, id string) (notification.Notification, error)
	}

	notificationApi struct {
		svc NotificationService
	}
)

var _ NotificationService = (*notification.Service)(nil)

func registerNotificationAPI(g *echo.Group, keyAuth echo.MiddlewareFunc, svc NotificationService) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications", keyAuth)
	ng.POST("", api.create)
	ng.GET("", api.query)
	ng.GET("/:id", api.retrieve)
}

// Handlers

func (api *notificationApi) create(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}

	n, err := api.svc.Send(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "sending notification")
	}
	return ctx.JSON(http.StatusAccepted, n)
}

func (api *notificationApi) query(ctx echo.Context) error {
	filter, err := bindNotificationFilter(ctx)
	if err != nil {
		return err
	}

	notifications, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifications == nil {
		notifications = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifications)
}

func (api *notificationApi) retrieve(ctx echo.Context) error {
	n, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding notification by ID")
	}
	return ctx.JSON(http.StatusOK, n)
}
