package rpcwallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	oneclick "github.com/branched-services/go-oneclick"
)

// JSON-RPC error codes with a meaning for submission.
const (
	codeExecutionReverted = 3
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeMethodNotFound    = -32601
)

// mapError sorts a node error into the oneclick submission taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return fmt.Errorf("%w: %v", oneclick.ErrSubmissionRejected, err)
		case codeUnauthorized:
			return fmt.Errorf("%w: %v", oneclick.ErrAccessDenied, err)
		case codeExecutionReverted:
			return &oneclick.RevertError{Reason: revertReason(err)}
		}
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return &oneclick.RevertError{Reason: revertReason(err)}
	}
	return fmt.Errorf("%w: %w", oneclick.ErrNetwork, err)
}

// revertReason decodes an Error(string) payload when the node returns one,
// falling back to the error message.
func revertReason(err error) string {
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if reason, unpackErr := abi.UnpackRevert(common.FromHex(data)); unpackErr == nil {
				return reason
			}
		}
	}
	msg := err.Error()
	if _, after, found := strings.Cut(msg, "execution reverted: "); found {
		return after
	}
	return msg
}
