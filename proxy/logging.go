package proxy

import (
	"net"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

type loggingService struct {
	logger  log.Logger
	service Service
}

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {
	return &loggingService{logger, s}
}

// HandleConnection wraps this service's HandleConnection
// method with added logging capabilities.
func (s *loggingService) HandleConnection(conn net.Conn) error {

	err := s.service.HandleConnection(conn)

	logger := log.With(s.logger,
		"method", "HandleConnection",
		"client", conn.RemoteAddr().String(),
	)

	if err != nil {
		level.Info(logger).Log(
			"msg", "failed to handle connection",
			"err", err,
		)
	} else {
		level.Debug(logger).Log()
	}

	return err
}
