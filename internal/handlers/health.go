package handlers

import (
	"net/http"
	"strconv"

	"github.com/tunnelpulse/tunnelpulse/internal/database"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	monitors := 0
	if Monitors != nil {
		monitors = Monitors.Count()
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": dbStatus,
		"monitors": strconv.Itoa(monitors),
	})
}
