package constants

const ImportInprog = "In-Progress"
const ImportComplete = "Completed"
const ImportFail = "Failed"

// Correlation ID header propagated to every outbound integration call.
const CorrelationHeader = "X-Correlation-ID"

const FHIRJSONContentType = "application/fhir+json"

// Default request timeout (ms) applied when neither options nor adapter
// config supply one.
const DefaultRequestTimeoutMS = 30000

// This is set during compilation. See build_and_package.sh in the ops repo.
var Version = "latest"
