package vad

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortMu guards the process-wide onnxruntime environment
var ortMu sync.Mutex

func initRuntime(lib string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	return ort.InitializeEnvironment()
}

// onnxModel binds the Silero v5 graph: inputs input[1,576], state[2,1,128],
// sr[1]; outputs output[1,1], stateN[2,1,128].
type onnxModel struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	state   *ort.Tensor[float32]
	sr      *ort.Tensor[int64]
	output  *ort.Tensor[float32]
	stateN  *ort.Tensor[float32]
}

func newONNXModel(modelPath, lib string) (m *onnxModel, err error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: silero model path not configured", ErrEngineInit)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineInit, err)
	}
	if err := initRuntime(lib); err != nil {
		return nil, fmt.Errorf("%w: onnxruntime: %v", ErrEngineInit, err)
	}

	m = &onnxModel{}
	defer func() {
		if err != nil {
			m.Close()
			m = nil
		}
	}()

	if m.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, sileroContextSize+SileroFrameSize)); err != nil {
		return m, fmt.Errorf("%w: input tensor: %v", ErrEngineInit, err)
	}
	if m.state, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return m, fmt.Errorf("%w: state tensor: %v", ErrEngineInit, err)
	}
	if m.sr, err = ort.NewTensor(ort.NewShape(1), []int64{SampleRate}); err != nil {
		return m, fmt.Errorf("%w: sr tensor: %v", ErrEngineInit, err)
	}
	if m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return m, fmt.Errorf("%w: output tensor: %v", ErrEngineInit, err)
	}
	if m.stateN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return m, fmt.Errorf("%w: stateN tensor: %v", ErrEngineInit, err)
	}

	m.session, err = ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{m.input, m.state, m.sr},
		[]ort.Value{m.output, m.stateN},
		nil)
	if err != nil {
		return m, fmt.Errorf("%w: session: %v", ErrEngineInit, err)
	}
	return m, nil
}

func (m *onnxModel) Predict(window []float32) (float32, error) {
	copy(m.input.GetData(), window)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("silero inference: %w", err)
	}
	copy(m.state.GetData(), m.stateN.GetData())
	return m.output.GetData()[0], nil
}

func (m *onnxModel) ResetState() {
	state := m.state.GetData()
	for i := range state {
		state[i] = 0
	}
}

func (m *onnxModel) Close() error {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	for _, t := range []*ort.Tensor[float32]{m.input, m.state, m.output, m.stateN} {
		if t != nil {
			t.Destroy()
		}
	}
	if m.sr != nil {
		m.sr.Destroy()
	}
	m.input, m.state, m.output, m.stateN, m.sr = nil, nil, nil, nil, nil
	return nil
}
