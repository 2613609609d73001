package models

import "fmt"

// LoadStatus enumerates the refresh lifecycle states.
type LoadStatus int

const (
	StatusWaitingForData LoadStatus = iota
	StatusLoaded
	StatusRefreshing
	StatusError
)

func (s LoadStatus) String() string {
	switch s {
	case StatusWaitingForData:
		return "waiting_for_data"
	case StatusLoaded:
		return "loaded"
	case StatusRefreshing:
		return "refreshing"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int(s))
	}
}

func (s LoadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LoadStatus) UnmarshalText(b []byte) error {
	for _, st := range []LoadStatus{StatusWaitingForData, StatusLoaded, StatusRefreshing, StatusError} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown load status %q", b)
}

// LoadState is the lifecycle status plus the message carried by the error state.
type LoadState struct {
	Status  LoadStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

func (s LoadState) String() string {
	if s.Status == StatusError {
		return fmt.Sprintf("error(%s)", s.Message)
	}
	return s.Status.String()
}
