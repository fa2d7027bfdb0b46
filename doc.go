// Package ace implements an autonomy calibration engine: a policy
// layer that decides, for every action an autonomous agent proposes,
// whether the agent may act immediately, must pause for structured
// self-review, or must escalate to a human operator.
//
// Trust is earned and lost per action class rather than fixed by an
// allow-list. Every decision flows through the same loop: classify the
// action, tag the trust of the content behind it, read the class's
// decayed precedent, blend reversibility, precedent, and blast radius
// into a composite score, and map the score to a tier. Mid-tier
// actions run a five-step deliberation that can promote, maintain, or
// demote the initial verdict, and every outcome the caller reports
// feeds back into precedent memory.
//
// Key Components:
//
//   - engine: the facade most callers want. Evaluate scores one
//     action end to end, ReportOutcome closes the loop, and
//     RecordEscalationDecision captures the human side of an
//     escalation.
//
//   - action: hierarchical action classes ("git:push:remote"),
//     wildcard matching, and the static tables behind them, including
//     the hard-ceiling classes that can never be automated.
//
//   - trust: source tagging with provenance chains, hostile-pattern
//     scanning, and the blast-radius modifiers trust levels apply.
//
//   - precedent: durable per-class outcome history with asymmetric
//     score movement, exponential decay, and negative propagation to
//     parent classes.
//
//   - scoring: the weighted composite and its act/deliberate/escalate
//     thresholds.
//
//   - deliberation: the five-step self-review protocol for actions in
//     the middle tier.
//
//   - audit: rubber-stamp detection over escalation responses, drift
//     tracking over deliberation outcomes, the self-modification
//     lockout, and the capped temporary bypass.
//
// Example usage:
//
//	cfg, err := config.Load("ace.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng, err := engine.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	decision, err := eng.Evaluate(ctx, engine.ActionRequest{
//	    Class:      "git:commit:local",
//	    Details:    "commit generated changelog",
//	    Motivation: "scheduled release prep",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	switch decision.Tier {
//	case scoring.TierAct:
//	    // perform the action, then report how it went
//	case scoring.TierDeliberate:
//	    // inspect decision.Deliberation
//	case scoring.TierEscalate:
//	    // hand to a human, then record their decision
//	}
//
// For more information and examples, visit:
// https://github.com/calyptra/ace-go
package ace
