package logging

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggingTestSuite struct {
	suite.Suite
}

func TestLoggingTestSuite(t *testing.T) {
	suite.Run(t, new(LoggingTestSuite))
}

func (s *LoggingTestSuite) TestNewDefaultsToInfo() {
	logger, err := New("")
	s.Require().NoError(err)

	s.True(logger.Core().Enabled(zapcore.InfoLevel))
	s.False(logger.Core().Enabled(zapcore.DebugLevel))
}

func (s *LoggingTestSuite) TestNewDebug() {
	logger, err := New("debug")
	s.Require().NoError(err)

	s.True(logger.Core().Enabled(zapcore.DebugLevel))
}

func (s *LoggingTestSuite) TestNewRejectsUnknownLevel() {
	_, err := New("loud")
	s.Require().Error(err)
	s.Contains(err.Error(), "invalid log level")
}

func (s *LoggingTestSuite) TestOrNop() {
	s.NotNil(OrNop(nil))

	logger := zap.NewExample()
	s.Same(logger, OrNop(logger))
}
