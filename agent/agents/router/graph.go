package router

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	nodex "github.com/tanpawarit/Chative-Intent-Router/agent/nodes/router"
)

const (
	nodeReceived         = "received"
	nodeIntentsEligible  = "intents_eligible"
	nodeIntentClassified = "intent_classified"
	nodeClarify          = "clarify"
	nodePlanCreated      = "plan_created"
	nodeAskUser          = "ask_user"
	nodePlanCommunicated = "plan_communicated"
	nodePolicyCheck      = "policy_check"
	nodeToolExecute      = "tool_execute"
	nodeRespond          = "respond"
)

func (r *Router) compileHandleGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodeReceived,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.Receive(ctx, in, r.emitter, r.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeReceived, err)
	}

	if err := graph.AddLambdaNode(nodeIntentsEligible,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.EligibleIntents(ctx, in, r.intents, r.emitter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeIntentsEligible, err)
	}

	if err := graph.AddLambdaNode(nodeIntentClassified,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ClassifyIntent(ctx, in, r.classifier, r.emitter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeIntentClassified, err)
	}

	if err := graph.AddLambdaNode(nodeClarify,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.Clarify(in, r.phrases)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeClarify, err)
	}

	if err := graph.AddLambdaNode(nodePlanCreated,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CreatePlan(ctx, in, r.planner, r.emitter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodePlanCreated, err)
	}

	if err := graph.AddLambdaNode(nodeAskUser,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.AskUser(ctx, in, r.phrases, r.emitter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeAskUser, err)
	}

	if err := graph.AddLambdaNode(nodePlanCommunicated,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CommunicatePlan(ctx, in, r.emitter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodePlanCommunicated, err)
	}

	if err := graph.AddLambdaNode(nodePolicyCheck,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CheckPolicy(ctx, in, r.policy, r.phrases, r.emitter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodePolicyCheck, err)
	}

	if err := graph.AddLambdaNode(nodeToolExecute,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteAction(ctx, in, r.actions, r.phrases, r.emitter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeToolExecute, err)
	}

	if err := graph.AddLambdaNode(nodeRespond,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.Respond(ctx, in, r.phrases, r.emitter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeRespond, err)
	}

	branches := []struct {
		from   string
		choose func(*nodex.GraphState) string
		to     []string
	}{
		{
			from: nodeIntentClassified,
			choose: func(st *nodex.GraphState) string {
				if st.Classification.Intent == nil {
					return nodeClarify
				}
				return nodePlanCreated
			},
			to: []string{nodeClarify, nodePlanCreated},
		},
		{
			from: nodePlanCreated,
			choose: func(st *nodex.GraphState) string {
				if _, ok := st.Plan.AskUser(); ok {
					return nodeAskUser
				}
				return nodePlanCommunicated
			},
			to: []string{nodeAskUser, nodePlanCommunicated},
		},
		{
			from: nodePolicyCheck,
			choose: func(st *nodex.GraphState) string {
				if st.Allowed() {
					return nodeToolExecute
				}
				return nodeRespond
			},
			to: []string{nodeToolExecute, nodeRespond},
		},
	}
	for _, b := range branches {
		choose := b.choose
		ends := make(map[string]bool, len(b.to))
		for _, to := range b.to {
			ends[to] = true
		}
		branch := compose.NewGraphBranch(
			func(ctx context.Context, in *nodex.GraphState) (string, error) {
				if in == nil {
					return "", fmt.Errorf("%w: %w", contractx.ErrValidation, nodex.ErrNilState)
				}
				return choose(in), nil
			},
			ends,
		)
		if err := graph.AddBranch(b.from, branch); err != nil {
			return nil, fmt.Errorf("add branch from %s: %w", b.from, err)
		}
	}

	edges := [][2]string{
		{compose.START, nodeReceived},
		{nodeReceived, nodeIntentsEligible},
		{nodeIntentsEligible, nodeIntentClassified},
		{nodeClarify, compose.END},
		{nodeAskUser, compose.END},
		{nodePlanCommunicated, nodePolicyCheck},
		{nodeToolExecute, nodeRespond},
		{nodeRespond, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("router.handle_interaction"))
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}
