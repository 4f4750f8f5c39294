package ontology

// embeddedEdges is the hand-authored ontology table: every edge (a,b,w) is
// entered alongside its mirror (b,a,w') with w' >= w, satisfying the
// backwards-resolution invariant (spec.md §4.4) by construction. Edges are
// grouped by family — auth, error, network, database, performance,
// lifecycle, resource — with intra-family edges at weight 1-4 (tight
// synonym clusters) and a handful of cross-family "bridge" edges at
// weight 5-8 representing real log-triage associations.
//
// TestOntologyBackwardsResolution verifies the mirroring property over
// this exact table.
var embeddedEdges = []edge{
	// --- auth family (intra, 1-4) ---
	{"auth", "authenticate", 1}, {"authenticate", "auth", 1},
	{"auth", "authentication", 1}, {"authentication", "auth", 1},
	{"auth", "authorization", 2}, {"authorization", "auth", 2},
	{"auth", "login", 2}, {"login", "auth", 2},
	{"login", "logout", 1}, {"logout", "login", 1},
	{"login", "session", 2}, {"session", "login", 2},
	{"session", "token", 2}, {"token", "session", 2},
	{"token", "credential", 2}, {"credential", "token", 2},
	{"credential", "password", 1}, {"password", "credential", 1},
	{"authorization", "permission", 1}, {"permission", "authorization", 1},
	{"permission", "forbidden", 2}, {"forbidden", "permission", 3},
	{"forbidden", "denied", 1}, {"denied", "forbidden", 1},
	{"denied", "rejected", 1}, {"rejected", "denied", 1},
	{"forbidden", "rejected", 2}, {"rejected", "forbidden", 2},
	{"denied", "unauthorized", 1}, {"unauthorized", "denied", 1},
	{"unauthorized", "auth", 3}, {"auth", "unauthorized", 4},

	// --- error family (intra, 1-4) ---
	{"error", "failure", 1}, {"failure", "error", 1},
	{"error", "exception", 1}, {"exception", "error", 1},
	{"exception", "panic", 2}, {"panic", "exception", 2},
	{"panic", "crash", 1}, {"crash", "panic", 1},
	{"crash", "fatal", 2}, {"fatal", "crash", 2},
	{"fatal", "fault", 1}, {"fault", "fatal", 1},
	{"fault", "abort", 2}, {"abort", "fault", 2},
	{"error", "fault", 2}, {"fault", "error", 2},
	{"failure", "abort", 3}, {"abort", "failure", 3},

	// --- network family (intra, 1-4) ---
	{"network", "connection", 1}, {"connection", "network", 1},
	{"connection", "socket", 1}, {"socket", "connection", 1},
	{"socket", "tcp", 1}, {"tcp", "socket", 1},
	{"tcp", "http", 2}, {"http", "tcp", 2},
	{"connection", "timeout", 2}, {"timeout", "connection", 2},
	{"timeout", "unreachable", 2}, {"unreachable", "timeout", 2},
	{"unreachable", "refused", 1}, {"refused", "unreachable", 1},
	{"refused", "connection", 2}, {"connection", "refused", 2},
	{"network", "dns", 2}, {"dns", "network", 2},
	{"dns", "unreachable", 3}, {"unreachable", "dns", 3},
	{"network", "latency", 3}, {"latency", "network", 3},

	// --- database family (intra, 1-4) ---
	{"database", "query", 1}, {"query", "database", 1},
	{"query", "transaction", 1}, {"transaction", "query", 1},
	{"transaction", "lock", 2}, {"lock", "transaction", 2},
	{"lock", "deadlock", 1}, {"deadlock", "lock", 1},
	{"database", "connection_pool", 2}, {"connection_pool", "database", 2},
	{"connection_pool", "exhausted", 3}, {"exhausted", "connection_pool", 3},
	{"database", "index", 2}, {"index", "database", 2},
	{"database", "replica", 2}, {"replica", "database", 2},
	{"replica", "migration", 3}, {"migration", "replica", 3},

	// --- performance family (intra, 1-4) ---
	{"performance", "latency", 1}, {"latency", "performance", 1},
	{"performance", "throughput", 1}, {"throughput", "performance", 1},
	{"performance", "slow", 1}, {"slow", "performance", 1},
	{"slow", "bottleneck", 2}, {"bottleneck", "slow", 2},
	{"performance", "cpu", 2}, {"cpu", "performance", 2},
	{"performance", "memory", 2}, {"memory", "performance", 2},
	{"memory", "gc", 1}, {"gc", "memory", 1},
	{"gc", "bottleneck", 3}, {"bottleneck", "gc", 3},
	{"latency", "slow", 2}, {"slow", "latency", 2},

	// --- lifecycle family (intra, 1-4) ---
	{"startup", "shutdown", 2}, {"shutdown", "startup", 2},
	{"shutdown", "restart", 1}, {"restart", "shutdown", 1},
	{"restart", "deploy", 2}, {"deploy", "restart", 2},
	{"deploy", "rollback", 2}, {"rollback", "deploy", 2},
	{"deploy", "healthcheck", 2}, {"healthcheck", "deploy", 2},
	{"healthcheck", "readiness", 1}, {"readiness", "healthcheck", 1},
	{"healthcheck", "liveness", 1}, {"liveness", "healthcheck", 1},
	{"readiness", "liveness", 1}, {"liveness", "readiness", 1},
	{"startup", "restart", 3}, {"restart", "startup", 3},

	// --- resource family (intra, 1-4) ---
	{"resource", "disk", 1}, {"disk", "resource", 1},
	{"resource", "quota", 1}, {"quota", "resource", 1},
	{"quota", "limit", 1}, {"limit", "quota", 1},
	{"limit", "exhausted", 2}, {"exhausted", "limit", 2},
	{"exhausted", "oom", 2}, {"oom", "exhausted", 2},
	{"resource", "oom", 2}, {"oom", "resource", 2},
	{"resource", "capacity", 2}, {"capacity", "resource", 2},
	{"capacity", "leak", 3}, {"leak", "capacity", 3},
	{"oom", "memory", 3}, {"memory", "oom", 4},

	// --- cross-family bridges (5-8) ---
	{"auth", "denied", 5}, {"denied", "auth", 6},
	{"network", "timeout", 6}, {"timeout", "network", 6},
	{"database", "lock", 5}, {"lock", "database", 6},
	{"resource", "oom", 6}, {"oom", "resource", 6},
	{"error", "exhausted", 6}, {"exhausted", "error", 7},
	{"performance", "timeout", 7}, {"timeout", "performance", 7},
	{"network", "refused", 5}, {"refused", "network", 5},
	{"lifecycle", "error", 8}, {"error", "lifecycle", 8},
	{"startup", "error", 7}, {"error", "startup", 8},
	{"deploy", "error", 6}, {"error", "deploy", 7},
	{"database", "error", 6}, {"error", "database", 7},
	{"auth", "error", 7}, {"error", "auth", 8},
}
