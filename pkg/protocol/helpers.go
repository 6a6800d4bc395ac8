package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message
func NewFrameMessage(frame FrameData) (*Message, error) {
	return NewMessage(TypeFrame, frame)
}

// NewStatusMessage creates a status message from any JSON-encodable snapshot
func NewStatusMessage(status interface{}) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewTalkMessage creates a talk request
func NewTalkMessage(durationMs int64, text string) (*Message, error) {
	return NewMessage(TypeTalk, TalkData{
		DurationMs: durationMs,
		Text:       text,
	})
}

// NewTalkStopMessage creates a stop-talking request
func NewTalkStopMessage() (*Message, error) {
	return NewMessage(TypeTalkStop, nil)
}

// NewTalkAckMessage confirms a talk session
func NewTalkAckMessage(session string, durationMs int64) (*Message, error) {
	return NewMessage(TypeTalkAck, TalkAck{
		Session:    session,
		DurationMs: durationMs,
	})
}

// NewErrorMessage reports a rejected request
func NewErrorMessage(request MessageType, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{
		Request: request,
		Message: err.Error(),
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID: id,
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTalkData extracts a talk request from a message
func (m *Message) GetTalkData() (*TalkData, error) {
	var data TalkData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTalkAck extracts a talk confirmation from a message
func (m *Message) GetTalkAck() (*TalkAck, error) {
	var data TalkAck
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts an error from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
