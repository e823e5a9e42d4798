// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	"tuner/internal/log"
)

// LoggingTransport writes every frame to the debug log as JSON.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	log.Debugf("transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send never fails; values that cannot be marshalled are logged raw.
func (lt *LoggingTransport) Send(data any) error {
	if !log.Enabled(log.LevelDebug) {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Debugf("transport: %T %+v (marshal error: %v)", data, data, err)
		return nil
	}
	log.Debugf("transport: %s", jsonData)
	return nil
}

func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
