package infrastructure

import "github.com/yourusername/dl-client/internal/domain"

// MultiProjector forwards every notification to each projector in order
type MultiProjector []domain.Projector

func (m MultiProjector) OnProgressInit() {
	for _, p := range m {
		p.OnProgressInit()
	}
}

func (m MultiProjector) OnProgressUpdate(progress float64) {
	for _, p := range m {
		p.OnProgressUpdate(progress)
	}
}

func (m MultiProjector) OnProgressReset() {
	for _, p := range m {
		p.OnProgressReset()
	}
}

func (m MultiProjector) OnPostprocessingEnter() {
	for _, p := range m {
		p.OnPostprocessingEnter()
	}
}

func (m MultiProjector) OnPostprocessingExit() {
	for _, p := range m {
		p.OnPostprocessingExit()
	}
}

func (m MultiProjector) OnError(message string) {
	for _, p := range m {
		p.OnError(message)
	}
}

func (m MultiProjector) OnErrorCleared() {
	for _, p := range m {
		p.OnErrorCleared()
	}
}

func (m MultiProjector) OnSaveArtifact(data []byte, filename string) {
	for _, p := range m {
		p.OnSaveArtifact(data, filename)
	}
}
