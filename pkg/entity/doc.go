// Package entity defines the entity types served by odatad and the metadata
// model that describes them.
//
// Two entity types exist:
//
//   - Customer: Id, Name, City, and the computed Orders collection navigation.
//   - Order: Id, OrderDate, Amount (fixed-point decimal), and an optional
//     forward reference to a Customer.
//
// Relationships are identifier based. An Order stores the key of its customer,
// never a pointer to a Customer value; the reverse direction (Customer.Orders)
// is derived at read time from the store's foreign-key index.
//
// The package also owns:
//
//   - The metadata Model used by the query binder, the JSON Schema generator
//     and the OpenAPI document.
//   - Optional[T] and the per-type patch structs used for merge-patch updates.
//     Presence is decided by key presence in the wire payload, not by value
//     nullability.
//   - The wire codec (Decode, DecodePatch, Encode).
//   - The error taxonomy shared by every layer (ValidationError, ConflictError,
//     NotFoundError).
package entity
