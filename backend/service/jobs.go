package service

import (
	"time"

	"github.com/davecgh/go-spew/spew"
)

// Cleanup drops empty rooms older than the configured max age.
func (svc *Service) Cleanup(now time.Time) {
	svc.mx.Lock()
	defer svc.mx.Unlock()

	for _, code := range svc.store.DeleteStale(now.Add(-svc.roomMaxAge)) {
		svc.anchors.Delete(code)
		svc.logger.Info().Str("room", code).Msg("cleaned up empty room")
	}
}

// ReportStatus logs registry totals. At trace level it also dumps every room.
func (svc *Service) ReportStatus(time.Time) {
	stats := svc.store.Stats()
	svc.logger.Info().
		Int("rooms", stats.Rooms).
		Int("connections", stats.Connections).
		Int("anchors", svc.anchors.Len()).
		Msg("status")

	if ev := svc.logger.Trace(); ev.Enabled() {
		ev.Str("rooms", spew.Sdump(svc.store.Rooms())).Msg("room snapshot")
	}
}
