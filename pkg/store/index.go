package store

import (
	"slices"

	"github.com/getmockd/odatad/pkg/entity"
)

// refIndex maps a customer key to the keys of the orders referencing it.
// It is maintained by the Orders collection and guarded by that collection's
// lock.
type refIndex struct {
	byCustomer map[int64][]int64
}

func newRefIndex() *refIndex {
	return &refIndex{byCustomer: make(map[int64][]int64)}
}

func (x *refIndex) update(prev, next *entity.Order) {
	var oldRef, newRef int64
	var hadOld, hasNew bool
	if prev != nil {
		oldRef, hadOld = prev.Customer()
	}
	if next != nil {
		newRef, hasNew = next.Customer()
	}
	if hadOld && hasNew && oldRef == newRef {
		return
	}
	if hadOld {
		x.unlink(oldRef, prev.ID)
	}
	if hasNew {
		x.byCustomer[newRef] = append(x.byCustomer[newRef], next.ID)
	}
}

func (x *refIndex) unlink(customerID, orderID int64) {
	ids := x.byCustomer[customerID]
	if i := slices.Index(ids, orderID); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(x.byCustomer, customerID)
		return
	}
	x.byCustomer[customerID] = ids
}

// orders returns a copy of the order keys referencing customerID.
func (x *refIndex) orders(customerID int64) []int64 {
	return slices.Clone(x.byCustomer[customerID])
}

func (x *refIndex) clone() map[int64][]int64 {
	out := make(map[int64][]int64, len(x.byCustomer))
	for k, v := range x.byCustomer {
		out[k] = slices.Clone(v)
	}
	return out
}
