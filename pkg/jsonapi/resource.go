package jsonapi

// ResourceBuilder assembles a Resource object.
type ResourceBuilder struct {
	resource Resource
}

// NewResource starts a resource with the given type and id.
func NewResource(resourceType, id string) *ResourceBuilder {
	return &ResourceBuilder{
		resource: Resource{
			Type:       resourceType,
			ID:         id,
			Attributes: make(map[string]any),
		},
	}
}

// Attr adds one attribute.
func (b *ResourceBuilder) Attr(key string, value any) *ResourceBuilder {
	if b.resource.Attributes == nil {
		b.resource.Attributes = make(map[string]any)
	}
	b.resource.Attributes[key] = value
	return b
}

// Relationship adds a named relationship.
func (b *ResourceBuilder) Relationship(name string, rel Relationship) *ResourceBuilder {
	if b.resource.Relationships == nil {
		b.resource.Relationships = make(map[string]Relationship)
	}
	b.resource.Relationships[name] = rel
	return b
}

// BelongsTo adds a to-one relationship. An empty id adds nothing, so
// optional parents stay absent rather than null.
func (b *ResourceBuilder) BelongsTo(name, relType, relID string) *ResourceBuilder {
	if relID == "" {
		return b
	}
	return b.Relationship(name, Relationship{
		Data: ResourceIdentifier{Type: relType, ID: relID},
	})
}

// HasMany adds a to-many relationship.
func (b *ResourceBuilder) HasMany(name string, identifiers []ResourceIdentifier) *ResourceBuilder {
	return b.Relationship(name, Relationship{
		Data: identifiers,
	})
}

// HasManyIDs adds a to-many relationship from bare ids.
func (b *ResourceBuilder) HasManyIDs(name, relType string, ids []string) *ResourceBuilder {
	identifiers := make([]ResourceIdentifier, len(ids))
	for i, id := range ids {
		identifiers[i] = ResourceIdentifier{Type: relType, ID: id}
	}
	return b.HasMany(name, identifiers)
}

// Meta adds metadata to the resource.
func (b *ResourceBuilder) Meta(key string, value any) *ResourceBuilder {
	if b.resource.Meta == nil {
		b.resource.Meta = make(Meta)
	}
	b.resource.Meta[key] = value
	return b
}

// Link sets the resource's self link.
func (b *ResourceBuilder) Link(self string) *ResourceBuilder {
	b.resource.Links = &ResourceLinks{Self: self}
	return b
}

// Build returns the constructed Resource.
func (b *ResourceBuilder) Build() Resource {
	return b.resource
}
