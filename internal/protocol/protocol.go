// Package protocol implements the coordinator's line-oriented text protocol:
// job requests, job replies, share submissions and verdicts.
package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/djkazic/ducominer/pkg/util"
)

const (
	sepToken   = ","
	spaceToken = " "
	endToken   = "\n"

	// AcceptToken is the verdict line of an accepted share.
	AcceptToken = "GOOD"

	// DeviceIDPrefix precedes the device identity in a submission.
	DeviceIDPrefix = "DUCOID"

	// DifficultyScale multiplies the declared difficulty into a search bound.
	DifficultyScale = 100

	minBlockHashLen  = 8
	minDifficultyLen = 1
)

var (
	ErrJobFormat         = errors.New("malformed job")
	ErrHashDecode        = errors.New("bad expected hash")
	ErrDifficultyInvalid = errors.New("invalid difficulty")
)

// Job is a unit of work issued by the coordinator. A Job only exists once
// every field has been parsed and validated.
type Job struct {
	LastBlockHash string
	ExpectedHash  [util.HashSize]byte

	// Declared is the difficulty as sent by the coordinator.
	Declared int64
	// Difficulty is the search bound: nonces in [0, Difficulty) are tried.
	Difficulty uint64
}

// JobRequest formats the request for new work.
func JobRequest(user, startDiff, key string) string {
	return "JOB" + sepToken + user + sepToken + startDiff + sepToken + key + endToken
}

// ParseJob parses a job reply of the form
// <lastBlockHash>,<expectedHashHex>,<difficulty>. Empty fields are skipped
// and fields after the third are ignored.
func ParseJob(line string) (*Job, error) {
	var fields [3]string
	i := 0
	for _, tok := range strings.Split(line, sepToken) {
		if tok == "" {
			continue
		}
		fields[i] = tok
		i++
		if i == len(fields) {
			break
		}
	}

	if len(fields[0]) < minBlockHashLen || len(fields[1]) < util.HashHexLen || len(fields[2]) < minDifficultyLen {
		return nil, fmt.Errorf("%w: field lengths %d/%d/%d",
			ErrJobFormat, len(fields[0]), len(fields[1]), len(fields[2]))
	}

	expected, err := util.DecodeHash(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashDecode, err)
	}

	declared, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrDifficultyInvalid, fields[2])
	}
	bound, err := SearchBound(declared)
	if err != nil {
		return nil, err
	}

	return &Job{
		LastBlockHash: fields[0],
		ExpectedHash:  expected,
		Declared:      declared,
		Difficulty:    bound,
	}, nil
}

// SearchBound converts a declared difficulty d into the number of nonces to
// try, d*100+1. d must be positive.
func SearchBound(declared int64) (uint64, error) {
	if declared <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrDifficultyInvalid, declared)
	}
	if declared > (math.MaxInt64-1)/DifficultyScale {
		return 0, fmt.Errorf("%w: %d overflows", ErrDifficultyInvalid, declared)
	}
	return uint64(declared)*DifficultyScale + 1, nil
}

// Submission is a found share as reported to the coordinator.
type Submission struct {
	Nonce    uint64
	Hashrate float64
	Banner   string
	Version  string
	RigID    string
	DeviceID string
	WalletID string
}

// Line formats the submission:
// <nonce>,<hashrate>,<banner> <version>,<rig>,DUCOID<device>,<wallet>
func (s Submission) Line() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(s.Nonce, 10))
	b.WriteString(sepToken)
	b.WriteString(strconv.FormatFloat(s.Hashrate, 'f', 2, 64))
	b.WriteString(sepToken)
	b.WriteString(s.Banner)
	b.WriteString(spaceToken)
	b.WriteString(s.Version)
	b.WriteString(sepToken)
	b.WriteString(s.RigID)
	b.WriteString(sepToken)
	b.WriteString(DeviceIDPrefix)
	b.WriteString(s.DeviceID)
	b.WriteString(sepToken)
	b.WriteString(s.WalletID)
	b.WriteString(endToken)
	return b.String()
}

// Verdict is the coordinator's answer to a submission.
type Verdict struct {
	Raw    string
	Status string
	Reason string
}

// ParseVerdict splits a verdict line into status and optional reason.
// Any line is a valid verdict; only an exact AcceptToken is an accept.
func ParseVerdict(line string) Verdict {
	status, reason, _ := strings.Cut(line, sepToken)
	return Verdict{Raw: line, Status: status, Reason: reason}
}

// Accepted reports whether the share was accepted.
func (v Verdict) Accepted() bool {
	return v.Raw == AcceptToken
}
