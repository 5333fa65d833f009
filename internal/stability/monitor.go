// Package stability decide cuándo la distribución observada de una
// predicción se ha "asentado" lo suficiente como para fiarse de ella.
package stability

import (
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
)

// Config agrupa los umbrales del monitor. Los defaults son los valores
// empíricos del juego de predicciones; todos son configurables por YAML.
type Config struct {
	// MaxSnapshots es el tamaño del ring buffer por evento.
	MaxSnapshots int `yaml:"max_snapshots"`

	// MinSnapshots exige un mínimo de observaciones antes de evaluar.
	MinSnapshots int `yaml:"min_snapshots"`

	// VolumeThreshold es el mínimo de usuarios totales para considerar la
	// muestra representativa.
	VolumeThreshold int `yaml:"volume_threshold"`

	// ShareStdevMax acota la desviación típica (en puntos porcentuales) de
	// la cuota del líder en la ventana de estabilidad.
	ShareStdevMax float64 `yaml:"share_stdev_max"`

	// StakeStdevMax acota la desviación típica relativa del ratio de stakes
	// (fracción del valor actual).
	StakeStdevMax float64 `yaml:"stake_stdev_max"`

	// GrowthMax es el crecimiento máximo de usuarios entre los dos últimos
	// snapshots; por encima el mercado sigue llenándose.
	GrowthMax float64 `yaml:"growth_max"`

	// ChaosStdev es el umbral de la comprobación de consenso inestable:
	// por encima (o con vuelco de mayoría) no se apuesta ni en fallback.
	ChaosStdev float64 `yaml:"chaos_stdev"`

	// Window es cuántos snapshots recientes entran en las medidas de
	// estabilidad.
	Window int `yaml:"window"`
}

// DefaultConfig devuelve los umbrales por defecto.
func DefaultConfig() Config {
	return Config{
		MaxSnapshots:    10,
		MinSnapshots:    3,
		VolumeThreshold: 100,
		ShareStdevMax:   5.0,
		StakeStdevMax:   0.20,
		GrowthMax:       0.15,
		ChaosStdev:      8.0,
		Window:          3,
	}
}

// withDefaults rellena los campos a cero con los defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSnapshots <= 0 {
		c.MaxSnapshots = d.MaxSnapshots
	}
	if c.MinSnapshots <= 0 {
		c.MinSnapshots = d.MinSnapshots
	}
	if c.VolumeThreshold <= 0 {
		c.VolumeThreshold = d.VolumeThreshold
	}
	if c.ShareStdevMax <= 0 {
		c.ShareStdevMax = d.ShareStdevMax
	}
	if c.StakeStdevMax <= 0 {
		c.StakeStdevMax = d.StakeStdevMax
	}
	if c.GrowthMax <= 0 {
		c.GrowthMax = d.GrowthMax
	}
	if c.ChaosStdev <= 0 {
		c.ChaosStdev = d.ChaosStdev
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// Snapshot es una observación puntual de la predicción: volumen, cuota del
// líder y ratio de stakes. Efímero, se destruye al resolver el evento.
type Snapshot struct {
	At           time.Time
	Elapsed      time.Duration
	TotalUsers   int
	TotalPoints  int
	LeadingIndex int
	LeadingShare float64
	StakeRatio   float64
	Outcomes     []domain.OutcomeStats
}

// Verdict es el resultado de una evaluación.
type Verdict struct {
	Ready      bool
	Reason     string
	Confidence float64
	Snapshot   *Snapshot
}

// Monitor mantiene un ring buffer de snapshots por evento activo y evalúa
// las puertas de estabilidad en cada nueva observación. Seguro para uso
// concurrente: lo tocan el handler de mensajes y la tarea de timing.
type Monitor struct {
	cfg Config

	mu      sync.Mutex
	buffers map[string][]Snapshot
}

// NewMonitor crea un monitor con la config dada (campos a cero ⇒ defaults).
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{
		cfg:     cfg.withDefaults(),
		buffers: make(map[string][]Snapshot),
	}
}

// Observe añade un snapshot al buffer del evento y devuelve el veredicto de
// estabilidad. Es una evaluación pura re-ejecutada con cada dato nuevo; su
// único efecto es actualizar el propio buffer.
func (m *Monitor) Observe(eventID string, outs []domain.OutcomeStats, elapsed time.Duration) Verdict {
	snap := makeSnapshot(outs, elapsed)

	m.mu.Lock()
	defer m.mu.Unlock()

	buf := append(m.buffers[eventID], snap)
	if len(buf) > m.cfg.MaxSnapshots {
		buf = buf[len(buf)-m.cfg.MaxSnapshots:]
	}
	m.buffers[eventID] = buf

	return m.evaluate(buf)
}

// Unstable aplica la comprobación de consenso caótico sobre la ventana
// reciente: desviación de la cuota del líder por encima de ChaosStdev, o un
// vuelco de mayoría. Con datos insuficientes no hay caos demostrado.
func (m *Monitor) Unstable(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := m.buffers[eventID]
	if len(buf) < m.cfg.Window {
		return false
	}
	win := buf[len(buf)-m.cfg.Window:]

	for i := 1; i < len(win); i++ {
		if win[i].LeadingIndex != win[i-1].LeadingIndex {
			return true
		}
	}
	return stdev(shares(win)) > m.cfg.ChaosStdev
}

// Last devuelve el snapshot más reciente del evento.
func (m *Monitor) Last(eventID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := m.buffers[eventID]
	if len(buf) == 0 {
		return Snapshot{}, false
	}
	return buf[len(buf)-1], true
}

// Forget libera el historial del evento. Llamar al resolver o abandonar.
func (m *Monitor) Forget(eventID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, eventID)
}

func (m *Monitor) evaluate(buf []Snapshot) Verdict {
	last := buf[len(buf)-1]
	v := Verdict{Snapshot: &last}

	if len(buf) < m.cfg.MinSnapshots {
		v.Reason = "insufficient data"
		return v
	}
	if last.TotalUsers < m.cfg.VolumeThreshold {
		v.Reason = "volume below threshold"
		return v
	}

	win := buf
	if len(win) > m.cfg.Window {
		win = win[len(win)-m.cfg.Window:]
	}

	shareDev := stdev(shares(win))
	if shareDev >= m.cfg.ShareStdevMax {
		v.Reason = "leading share still moving"
		return v
	}

	// Una cuota estable con vuelco de líder (60/40 ↔ 40/60) no es un
	// mercado asentado aunque la desviación sea cero.
	for i := 1; i < len(win); i++ {
		if win[i].LeadingIndex != win[i-1].LeadingIndex {
			v.Reason = "majority flipped"
			return v
		}
	}

	stakeDev := relStdev(ratios(win))
	if stakeDev >= m.cfg.StakeStdevMax {
		v.Reason = "stake ratio still moving"
		return v
	}

	prev := buf[len(buf)-2]
	if prev.TotalUsers > 0 {
		growth := float64(last.TotalUsers-prev.TotalUsers) / float64(prev.TotalUsers)
		if growth > m.cfg.GrowthMax {
			v.Reason = "market still filling"
			return v
		}
	}

	v.Ready = true
	v.Reason = "stable"
	v.Confidence = m.confidence(last, shareDev, stakeDev)
	return v
}

// confidence mezcla ratio de volumen (50%), estabilidad de cuota (30%) y
// estabilidad de stakes (20%), acotado a 1.0.
func (m *Monitor) confidence(last Snapshot, shareDev, stakeDev float64) float64 {
	volume := float64(last.TotalUsers) / float64(m.cfg.VolumeThreshold)
	if volume > 1 {
		volume = 1
	}
	share := 1 - shareDev/m.cfg.ShareStdevMax
	stake := 1 - stakeDev/m.cfg.StakeStdevMax

	conf := 0.5*volume + 0.3*share + 0.2*stake
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// --- helpers ---

func makeSnapshot(outs []domain.OutcomeStats, elapsed time.Duration) Snapshot {
	cp := make([]domain.OutcomeStats, len(outs))
	copy(cp, outs)

	lead := domain.LeadingIndex(cp)
	ratio := 0.0
	if lead >= 0 {
		if rest := domain.RestAvgStake(cp, lead); rest > 0 {
			ratio = cp[lead].AvgStake() / rest
		}
	}

	return Snapshot{
		At:           time.Now(),
		Elapsed:      elapsed,
		TotalUsers:   domain.TotalUsers(cp),
		TotalPoints:  domain.TotalPoints(cp),
		LeadingIndex: lead,
		LeadingShare: domain.LeadingShare(cp),
		StakeRatio:   ratio,
		Outcomes:     cp,
	}
}

func shares(win []Snapshot) []float64 {
	vals := make([]float64, len(win))
	for i, s := range win {
		vals[i] = s.LeadingShare
	}
	return vals
}

func ratios(win []Snapshot) []float64 {
	vals := make([]float64, len(win))
	for i, s := range win {
		vals[i] = s.StakeRatio
	}
	return vals
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stdev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	avg := mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)))
}

// relStdev normaliza la desviación por la media; con media cero no hay
// divergencia medible.
func relStdev(vals []float64) float64 {
	avg := mean(vals)
	if avg == 0 {
		return 0
	}
	return stdev(vals) / math.Abs(avg)
}
