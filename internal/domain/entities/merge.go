package entities

// ContentRewrite replaces one entity's content during a merge.
type ContentRewrite struct {
	EntityID string
	Content  string
}

// MergePlan is everything a merge writes, computed before any write happens.
type MergePlan struct {
	Primary     *Entity
	SecondaryID string
	Rewrites    []ContentRewrite
	Versions    []EntityVersion
}

// CommitPlan is everything a commit writes, computed before any write
// happens. Entity and document IDs are assigned up front so relationships
// can reference entities created in the same plan.
type CommitPlan struct {
	Document      *Document
	Creates       []*Entity
	Updates       []*Entity
	Versions      []EntityVersion
	Relationships []*Relationship
}
