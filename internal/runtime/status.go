package runtime

import (
	"net/http"

	"github.com/bluesky/docrelay/internal/runtime/jsoncodec"
)

// StatusReport is served as JSON on /status next to /metrics.
type StatusReport struct {
	ReceiveFrom string               `json:"receive_from"`
	SendTo      string               `json:"send_to"`
	OpenRuns    int                  `json:"open_runs"`
	Buffered    int                  `json:"buffered"`
	Failed      bool                 `json:"failed"`
	Error       string               `json:"error,omitempty"`
	Counters    RelayMetricsSnapshot `json:"counters"`
}

// Status collects the current state of the relay.
func (s *Service) Status() StatusReport {
	openRuns, buffered := s.relay.Status()
	report := StatusReport{
		ReceiveFrom: s.Conf.Inbound.PubSubSystem + ":" + s.Conf.Inbound.Topic,
		SendTo:      s.Conf.Outbound.PubSubSystem + ":" + s.Conf.Outbound.Topic,
		OpenRuns:    openRuns,
		Buffered:    buffered,
		Counters:    s.metrics.GetSnapshot(),
	}
	if err := s.relay.Err(); err != nil {
		report.Failed = true
		report.Error = err.Error()
	}
	return report
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	report := s.Status()
	w.Header().Set("Content-Type", "application/json")
	if report.Failed {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := jsoncodec.Encode(w, report); err != nil {
		s.Logger.Error("Failed to encode status", err, nil)
	}
}
