package inventory

// PickWarehouse chooses the warehouse to fulfill a line item from, given the
// ledger rows of one product. The rows must already be locked by the caller's
// transaction; selection and locking share the same scope so availability
// cannot change between the check and the reserve.
//
// Policy: the entry with the most slack (largest available) that covers the
// whole request wins, which spreads contention away from nearly-drained
// warehouses. Ties go to the lowest warehouse id so the choice is stable.
// A line item is never split across warehouses.
func PickWarehouse(productID int64, entries []StockEntry, requested int) (int64, error) {
	var (
		best    *StockEntry
		maxSeen int
	)
	for i := range entries {
		e := &entries[i]
		avail := e.Available()
		if avail > maxSeen {
			maxSeen = avail
		}
		if avail < requested {
			continue
		}
		if best == nil || avail > best.Available() ||
			(avail == best.Available() && e.WarehouseID < best.WarehouseID) {
			best = e
		}
	}
	if best == nil {
		return 0, &InsufficientStockError{
			ProductID:    productID,
			Requested:    requested,
			MaxAvailable: maxSeen,
		}
	}
	return best.WarehouseID, nil
}
