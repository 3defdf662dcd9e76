package convert

import "strconv"

// COCOKeypoints are the 17 COCO keypoint names in model output order.
var COCOKeypoints = []string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
}

// COCOSkeleton lists the limbs as pairs of keypoint indices.
var COCOSkeleton = [][2]int{
	{5, 7}, {7, 9}, {6, 8}, {8, 10}, // arms
	{5, 6}, {5, 11}, {6, 12}, {11, 12}, // torso
	{11, 13}, {13, 15}, {12, 14}, {14, 16}, // legs
	{0, 1}, {0, 2}, {1, 3}, {2, 4}, // head
	{0, 5}, {0, 6},
}

// personClass is the class whose boxes anchor pose keypoints.
const personClass = "person"

// poseAnchorIoU is the overlap above which a pose joins an existing person
// box instead of starting a new group.
const poseAnchorIoU = 0.3

// keypointName returns the label for the i-th keypoint.
func keypointName(name string, i int) string {
	if name != "" {
		return name
	}
	if i < len(COCOKeypoints) {
		return COCOKeypoints[i]
	}
	return "keypoint_" + strconv.Itoa(i)
}
