package event

import "time"

// Snapshot is a point-in-time, serializable copy of a RequestEvent, used by
// sinks and observers that persist or export finished events.
type Snapshot struct {
	RequestID string `bson:"_id" json:"request_id"`
	Status    Status `bson:"status" json:"status"`

	EndpointURL     string            `bson:"endpoint_url,omitempty" json:"endpoint_url,omitempty"`
	Method          string            `bson:"method,omitempty" json:"method,omitempty"`
	RequestHeaders  map[string]string `bson:"request_headers,omitempty" json:"request_headers,omitempty"`
	Payload         any               `bson:"payload,omitempty" json:"payload,omitempty"`
	ConsumptionCost float64           `bson:"consumption_cost,omitempty" json:"consumption_cost,omitempty"`

	ResponseStatusCode int               `bson:"response_status_code,omitempty" json:"response_status_code,omitempty"`
	ResponseHeaders    map[string]string `bson:"response_headers,omitempty" json:"response_headers,omitempty"`
	ResponseBody       any               `bson:"response_body,omitempty" json:"response_body,omitempty"`

	ErrorType    string `bson:"error_type,omitempty" json:"error_type,omitempty"`
	ErrorMessage string `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ErrorDetails string `bson:"error_details,omitempty" json:"error_details,omitempty"`

	CreatedAt           time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at" json:"updated_at"`
	QueuedAt            *time.Time `bson:"queued_at,omitempty" json:"queued_at,omitempty"`
	ProcessingStartedAt *time.Time `bson:"processing_started_at,omitempty" json:"processing_started_at,omitempty"`
	CallStartedAt       *time.Time `bson:"call_started_at,omitempty" json:"call_started_at,omitempty"`
	CompletedAt         *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`

	Logs     []string       `bson:"logs,omitempty" json:"logs,omitempty"`
	Metadata map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// Snapshot copies the current state of the event into a Snapshot.
func (e *RequestEvent) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		RequestID:           e.requestID,
		Status:              e.status,
		EndpointURL:         e.endpointURL,
		Method:              e.method,
		RequestHeaders:      e.requestHeaders,
		Payload:             e.payload,
		ConsumptionCost:     e.consumptionCost,
		ResponseStatusCode:  e.responseStatusCode,
		ResponseHeaders:     e.responseHeaders,
		ResponseBody:        e.responseBody,
		ErrorType:           e.errorType,
		ErrorMessage:        e.errorMessage,
		ErrorDetails:        e.errorDetails,
		CreatedAt:           e.createdAt,
		UpdatedAt:           e.updatedAt,
		QueuedAt:            timePtr(e.queuedAt),
		ProcessingStartedAt: timePtr(e.processingStartedAt),
		CallStartedAt:       timePtr(e.callStartedAt),
		CompletedAt:         timePtr(e.completedAt),
	}

	s.Logs = make([]string, len(e.logs))
	copy(s.Logs, e.logs)
	s.Metadata = make(map[string]any, len(e.metadata))
	for k, v := range e.metadata {
		s.Metadata[k] = v
	}
	return s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
