package storage

import "fmt"

// HistoricalStreamKey names the backfill work stream of one indexer.
func HistoricalStreamKey(streamID string) string {
	return fmt.Sprintf("historical:stream:%s", streamID)
}

// RealTimeStreamKey names the live work stream of one indexer.
func RealTimeStreamKey(streamID string) string {
	return fmt.Sprintf("real_time:stream:%s", streamID)
}

// ReceiptKey names the receipt -> transaction mapping entry.
func ReceiptKey(receiptID string) string {
	return fmt.Sprintf("receipt:%s", receiptID)
}

// TxPendingKey names the pending-receipt counter of one transaction.
func TxPendingKey(txHash string) string {
	return fmt.Sprintf("tx_pending:%s", txHash)
}
