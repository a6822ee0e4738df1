// Package core provides the schema-driven record engine behind the stock
// dashboard: static record type descriptors, form synthesis, validated
// mutations and tabular import/export.
//
// Storage is reached only through the [Store] and [Transactor] interfaces, so
// the package carries no SQL and can be driven by HTTP handlers, CLI tools or
// tests without modification.
//
// # Record Types
//
// Types are registered at init time using [Register]. Each [RecordType]
// lists its fields with their semantic kind, nullability and defaults:
//
//	core.Register(core.RecordType{
//	    Name:  "products",
//	    Label: "Produits",
//	    Fields: []core.Field{
//	        {Name: "id", Kind: core.KindInteger, PrimaryKey: true, AutoIncrement: true},
//	        {Name: "name", Kind: core.KindString, MaxLength: 100},
//	        {Name: "quantity", Kind: core.KindDecimal, Precision: 10, Scale: 2},
//	    },
//	    NaturalKey: []string{"name", "quantity", "unit"},
//	})
//
// [Reflect] describes a type's columns; [Synthesizer] turns a type into an
// edit form and a submitted form back into raw input.
//
// # Mutations
//
// [Mutator] coerces raw input (strings from files and forms, JSON values),
// validates it and writes it in a transaction. Decimals are always quantized
// to their field's scale, half away from zero. Hooks registered with
// [Mutator.RegisterHooks] run after commit.
//
// # Import
//
// [Mutator.ImportBatch] applies rows under one of four modes:
//
//   - insert:  every row creates a record
//   - update:  every row must carry the primary key of an existing record
//   - upsert:  rows matching by primary key or natural key update, others create
//   - replace: existing records are deleted first, then rows are inserted
//
// Each row runs in a savepoint; failed rows are reported in
// [ImportResult.Errors] without aborting the batch.
//
// # Error Handling
//
// Engine errors match the sentinels in errors.go with errors.Is. [MapError]
// turns any error into a [UserMessage] with a support code.
//
// # Audit Logging
//
// When the mutator has an [AuditSink], every committed mutation is recorded
// with the actor, IP address and user agent carried by the request context.
package core
