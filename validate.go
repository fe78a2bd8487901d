// Copyright 2024 The PrometheusD Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prometheusd

import (
	"fmt"
	"regexp"
	"strings"
)

// Label names share the metric name grammar here, colons included; the
// reserved names and the __ prefix are checked separately.
var (
	metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelNameRE  = metricNameRE
)

// reservedLabelPrefix is a prefix which is not legal in user-supplied
// label names.
const reservedLabelPrefix = "__"

const (
	bucketLabel   = "le"
	quantileLabel = "quantile"
)

func validateMetricName(name string) error {
	if !metricNameRE.MatchString(name) {
		return fmt.Errorf("%q is not a valid metric name", name)
	}
	return nil
}

// validateLabelName checks a single label name against the label grammar and
// the names reserved for the given metric kind. "le" is reserved for
// histograms and "quantile" for summaries; both are attached by the
// serializer itself.
func validateLabelName(name string, kind metricKind) error {
	if !labelNameRE.MatchString(name) {
		return fmt.Errorf("%q is not a valid label name", name)
	}
	if strings.HasPrefix(name, reservedLabelPrefix) {
		return fmt.Errorf("label name %q is reserved for internal use", name)
	}
	if kind == histogramKind && name == bucketLabel {
		return fmt.Errorf("%q is not allowed as label name in histograms", bucketLabel)
	}
	if kind == summaryKind && name == quantileLabel {
		return fmt.Errorf("%q is not allowed as label name in summaries", quantileLabel)
	}
	return nil
}

// validateLabelNames validates every name in names and rejects duplicates,
// including duplicates against the already-accepted seen set (used to check
// the instance schema against static labels).
func validateLabelNames(names []string, kind metricKind, seen map[string]struct{}) error {
	for _, name := range names {
		if err := validateLabelName(name, kind); err != nil {
			return err
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate label name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
