package entities

// Extraction progress stages, in emission order. StageStarting is emitted
// twice: once for the run and once when chunk extraction begins.
const (
	StageStarting      = "starting"
	StageParsed        = "parsed"
	StageLoading       = "loading"
	StageLoaded        = "loaded"
	StageProgress      = "progress"
	StageProcessing    = "processing"
	StageEntities      = "entities"
	StageRelationships = "relationships"
	StageDuplicates    = "duplicates"
	StageComplete      = "complete"
	StageError         = "error"
)

// ProgressEvent is one named step of an extraction run with a small payload.
type ProgressEvent struct {
	Stage string `json:"stage"`
	Data  any    `json:"data"`
}

// Terminal reports whether no further events follow.
func (e ProgressEvent) Terminal() bool {
	return e.Stage == StageComplete || e.Stage == StageError
}
