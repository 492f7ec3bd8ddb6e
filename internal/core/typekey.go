package core

// typeKeysByLabel maps the published facility-type labels to type keys.
var typeKeysByLabel = map[string]TypeKey{
	"認定こども園":   TypeCertified,
	"私立認可保育園":  TypePrivate,
	"公立認可保育園":  TypeMunicipal,
	"小規模保育事業":  TypeSmall,
	"事業所内保育事業": TypeOnsite,
	"私立幼稚園":    TypeKindergarten,
}

// typeKeyOrder is the display order of the closed enumeration.
var typeKeyOrder = []TypeKey{
	TypeCertified,
	TypePrivate,
	TypeMunicipal,
	TypeSmall,
	TypeOnsite,
	TypeKindergarten,
	TypeOther,
}

// TypeKeyForLabel converts a facility-type label to its type key.
// Unrecognised or empty labels map to TypeOther.
func TypeKeyForLabel(label string) TypeKey {
	if key, ok := typeKeysByLabel[CleanHeader(label)]; ok {
		return key
	}
	return TypeOther
}

// LabelForTypeKey returns the published label for key, or "" for TypeOther
// and unknown keys.
func LabelForTypeKey(key TypeKey) string {
	for label, k := range typeKeysByLabel {
		if k == key {
			return label
		}
	}
	return ""
}

// ParseTypeKey validates a type key string.
func ParseTypeKey(s string) (TypeKey, bool) {
	for _, k := range typeKeyOrder {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// TypeKeys returns every type key in display order.
func TypeKeys() []TypeKey {
	out := make([]TypeKey, len(typeKeyOrder))
	copy(out, typeKeyOrder)
	return out
}

// Descriptor returns the SourceDescriptor for a base registry of this type.
func (k TypeKey) Descriptor() SourceDescriptor {
	return SourceDescriptor{Key: k, Label: LabelForTypeKey(k)}
}
