package testutil

import (
	"strconv"

	"github.com/djkazic/ducominer/pkg/util"
)

// SampleBlockHash is a realistic last-block hash as sent by the coordinator.
const SampleBlockHash = "ba29a15896fd2d792d5c4b60668bf2b9feebc51d"

// ExpectedHashFor returns the digest a job carries when its solution is nonce.
func ExpectedHashFor(lastBlockHash string, nonce uint64) [util.HashSize]byte {
	return util.SumS1([]byte(lastBlockHash + util.FormatNonce(nonce)))
}

// JobLine builds a coordinator job reply whose solution is nonce.
func JobLine(lastBlockHash string, nonce uint64, declaredDifficulty int) string {
	return lastBlockHash + "," + util.EncodeHash(ExpectedHashFor(lastBlockHash, nonce)) + "," + strconv.Itoa(declaredDifficulty)
}

// UnsolvableJobLine builds a job reply whose expected hash no nonce produces.
func UnsolvableJobLine(lastBlockHash string, declaredDifficulty int) string {
	return lastBlockHash + ",0000000000000000000000000000000000000000," + strconv.Itoa(declaredDifficulty)
}
