package metadata

/**
 * @brief The closed set of pipelines the renderer builds. Materials select
 * one of these; there is no lookup by name.
 */
type PipelineKind int

const (
	/** @brief Lit geometry drawn in subpass 0 into the HDR attachment. */
	PipelineGeometry PipelineKind = iota
	/** @brief Full-screen tonemap in subpass 1 reading the HDR attachment. */
	PipelinePostProcess
	/** @brief The number of pipeline kinds. */
	PipelineKindCount
)

func (k PipelineKind) String() string {
	switch k {
	case PipelineGeometry:
		return "geometry"
	case PipelinePostProcess:
		return "post-process"
	}
	return "unknown"
}

// Subpass returns the render pass subpass a pipeline of this kind runs in.
func (k PipelineKind) Subpass() uint32 {
	if k == PipelinePostProcess {
		return 1
	}
	return 0
}
