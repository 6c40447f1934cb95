package artifact

// Kind distinguishes the two payload shapes a Record may carry.
type Kind string

const (
	KindFile     Kind = "file"
	KindBusiness Kind = "business"
)

// Business field keys. The canonical form sorts them by codepoint, so this
// declaration order carries no meaning.
const (
	FieldEntityName = "entityName"
	FieldDomain     = "domain"
	FieldCountry    = "country"
	FieldLegalType  = "legalType"
	FieldCategory   = "category"
)

var businessFieldKeys = []string{
	FieldEntityName,
	FieldDomain,
	FieldCountry,
	FieldLegalType,
	FieldCategory,
}

// Record is one notarizable unit: raw file bytes plus metadata, or the
// declared attributes of a business entity. Exactly one payload is present.
type Record struct {
	File     []byte
	Fields   map[string]string
	Metadata map[string]string
}

// BusinessFields are the attributes a business declares when registering.
type BusinessFields struct {
	EntityName string
	Domain     string
	Country    string
	LegalType  string
	Category   string
}

// NewFileRecord builds a file record. The maps are copied.
func NewFileRecord(file []byte, metadata map[string]string) Record {
	return Record{File: file, Metadata: copyMap(metadata)}
}

// NewBusinessRecord builds a structured record from business fields.
func NewBusinessRecord(f BusinessFields) Record {
	return Record{Fields: f.Map()}
}

// Map returns the fields keyed by their canonical names.
func (f BusinessFields) Map() map[string]string {
	return map[string]string{
		FieldEntityName: f.EntityName,
		FieldDomain:     f.Domain,
		FieldCountry:    f.Country,
		FieldLegalType:  f.LegalType,
		FieldCategory:   f.Category,
	}
}

// Kind reports the payload shape. A record with neither or both payloads has no kind.
func (r Record) Kind() Kind {
	switch {
	case r.File != nil && r.Fields == nil:
		return KindFile
	case r.File == nil && r.Fields != nil:
		return KindBusiness
	default:
		return ""
	}
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
