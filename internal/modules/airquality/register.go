package airquality

import (
	"net/http"
	"time"

	"sen66-server/internal/modules/airquality/controller"
	"sen66-server/internal/modules/airquality/service"
)

func RegisterFeature(mux *http.ServeMux, svc *service.Service, refresh time.Duration) {
	airQualityController := controller.NewAirQualityController(svc, refresh)
	airQualityController.RegisterRoutes(mux)
}
