package agent

// processBufferSize is the channel buffer depth for streamed response chunks.
const processBufferSize = 64

// maxConcurrentJobs caps goroutines spawned for async tool jobs at once.
const maxConcurrentJobs = 16

// MaxResponseTextSize caps accumulated assistant text per iteration (4MB).
const MaxResponseTextSize = 4 << 20

// MaxToolCallsPerIteration caps tool calls requested by a single LLM turn.
const MaxToolCallsPerIteration = 32
