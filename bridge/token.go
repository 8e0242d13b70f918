package bridge

import (
	"github.com/TEENet-io/token-bridge/common"
	"github.com/TEENet-io/token-bridge/state"
	perrors "github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

// RegisterToken marks symbol as supported. Registering a supported symbol
// again succeeds without change.
func (s *Session) RegisterToken(symbol string) (bool, error) {
	if _, err := s.requireOwner(); err != nil {
		return false, err
	}
	if len(symbol) == 0 || len(symbol) > MaxSymbolLength || !common.IsPrintableASCII(symbol) {
		return false, fail(ErrInvalidToken, "symbol %q", symbol)
	}

	if err := s.st.SetTokenSupported(symbol, true); err != nil {
		return false, perrors.Wrapf(err, "failed to register token %s", symbol)
	}

	logger.WithField("symbol", symbol).Info("token registered")
	return true, nil
}

// IsSupportedToken returns false for unknown symbols and on storage
// failures.
func (s *Session) IsSupportedToken(symbol string) bool {
	ok, err := s.tokenSupported(symbol)
	if err != nil {
		logger.WithFields(logger.Fields{"symbol": symbol, "err": err}).Error("failed to read token")
		return false
	}
	return ok
}

func (s *Session) tokenSupported(symbol string) (bool, error) {
	ok, err := s.st.IsTokenSupported(symbol)
	if err != nil {
		return false, perrors.Wrapf(err, "failed to read token %s", symbol)
	}
	return ok, nil
}

func (s *Session) GetTokens() ([]*state.TokenConfig, error) {
	tokens, err := s.st.GetTokens()
	if err != nil {
		return nil, perrors.Wrap(err, "failed to list tokens")
	}
	return tokens, nil
}
