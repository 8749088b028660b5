package gateways

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/polygonid/attestation-bridge/internal/config"
	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/log"
	"github.com/polygonid/attestation-bridge/internal/metrics"
)

type ledgerCommitter struct {
	exec    ports.LedgerExecutor
	cfg     config.Ledger
	metrics *metrics.Metrics
}

// NewLedgerCommitter returns the two phase committer of the did registry
func NewLedgerCommitter(exec ports.LedgerExecutor, cfg config.Ledger, m *metrics.Metrics) ports.LedgerCommitter {
	return &ledgerCommitter{exec: exec, cfg: cfg, metrics: m}
}

// OpenRecord calls start_verification and locates the created record
func (c *ledgerCommitter) OpenRecord(ctx context.Context, userWallet string, didType uint8) (*domain.LedgerRecord, error) {
	res, err := c.execute(ctx, domain.LedgerFnStartVerification, []string{
		c.cfg.RegistryID,
		c.cfg.CapID,
		userWallet,
		strconv.FormatUint(uint64(didType), 10),
		c.cfg.ClockID,
	})
	if err != nil {
		return nil, err
	}
	if res.Stderr != "" {
		log.Warn(ctx, "start_verification warnings", "stderr", res.Stderr)
	}

	id, ok := findRecordID(res, c.cfg.RecordType)
	if !ok {
		log.Warn(ctx, "created record not found in start_verification output", "recordType", c.cfg.RecordType, "stdout", res.Stdout)
		return nil, nil
	}
	log.Info(ctx, "ledger record opened", "recordID", id, "didType", didType)
	return &domain.LedgerRecord{ID: id}, nil
}

// FinalizeRecord calls update_verification_status on an opened record
func (c *ledgerCommitter) FinalizeRecord(ctx context.Context, req domain.FinalizeRequest) error {
	hash, err := hex.DecodeString(req.EvidenceHash)
	if err != nil {
		return errors.Wrap(err, "decoding evidence hash")
	}
	_, err = c.execute(ctx, domain.LedgerFnUpdateVerifiedStatus, []string{
		c.cfg.RegistryID,
		c.cfg.CapID,
		req.RecordID,
		strconv.FormatBool(req.Verified),
		vectorLiteral(req.Signature),
		strconv.FormatInt(req.SignatureTimestampMs, 10),
		vectorLiteral(hash),
		c.cfg.ClockID,
	})
	if err != nil {
		return err
	}
	log.Info(ctx, "ledger record finalized", "recordID", req.RecordID, "verified", req.Verified)
	return nil
}

func (c *ledgerCommitter) execute(ctx context.Context, function string, args []string) (*domain.LedgerCommandResult, error) {
	cmd := domain.LedgerCommand{
		PackageID: c.cfg.PackageID,
		Module:    domain.LedgerModule,
		Function:  function,
		Args:      args,
		GasBudget: c.cfg.GasBudget,
	}
	start := time.Now()
	res, err := c.exec.Execute(ctx, cmd)
	if err != nil {
		c.metrics.ObserveLedgerCommand(function, false, start)
		return nil, &domain.LedgerCommandFailedError{Function: function, ExitCode: -1, Err: err}
	}
	c.metrics.ObserveLedgerCommand(function, res.Success, start)
	if !res.Success {
		log.Error(ctx, "ledger command failed", "function", function, "returncode", res.ReturnCode, "stderr", res.Stderr, "stdout", res.Stdout)
		return nil, &domain.LedgerCommandFailedError{
			Function: function,
			ExitCode: res.ReturnCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res, nil
}

// vectorLiteral renders bytes as a vector<u8> CLI argument, e.g. [1,2,3].
func vectorLiteral(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	sb.WriteByte(']')
	return sb.String()
}
