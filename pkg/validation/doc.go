// Package validation checks request payloads against JSON Schemas derived
// from the entity model and builds the OpenAPI service document.
//
// Each entity type gets one compiled schema per write mode:
//
//	v, err := validation.NewValidator(entity.DefaultModel())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result := v.Validate(entity.SetOrders, validation.ModeCreate, body)
//	if !result.OK() {
//	    return result.Err() // *entity.ValidationError
//	}
//
// Payloads must be decoded with json.Decoder.UseNumber so that numbers keep
// their exact text.
//
// The service document is an OpenAPI 3.0 description of every entity set,
// loaded and validated with kin-openapi:
//
//	doc, err := validation.BuildDocument(ctx, model, "dev")
package validation
